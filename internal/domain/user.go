package domain

// User es el perfil publico tal como lo serializa la API remota.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Bio            string `json:"bio,omitempty"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	VideoCount     int    `json:"video_count"`
	HeartCount     int    `json:"heart_count"`
}
