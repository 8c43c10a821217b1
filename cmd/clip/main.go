package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"clipfeed/internal/api"
	"clipfeed/internal/auth"
	"clipfeed/internal/config"
	"clipfeed/internal/crypto"
	"clipfeed/internal/domain"
	"clipfeed/internal/inbox"
	"clipfeed/internal/session"
	"clipfeed/internal/storage"
)

// errQuit corta el loop del menu sin saltear los defers de run.
var errQuit = errors.New("quit")

func main() {
	if err := run(); err != nil && !errors.Is(err, errQuit) {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewExample()
	defer logger.Sync()

	kv, closeKV, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	sealer, err := crypto.NewSealer(cfg.SealKey)
	if err != nil {
		return err
	}

	store := session.NewStore(kv,
		session.WithLogger(logger),
		session.WithSealer(sealer),
		session.WithStorageTimeout(cfg.StorageTimeout),
		session.WithNavigator(session.NavigatorFunc(func() {
			fmt.Println("-> inicio")
		})),
	)
	store.Init(ctx)

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	authSvc := auth.NewService(apiClient, store, clockwork.NewRealClock(), cfg.TokenRefreshSkew, logger)
	inboxSvc := inbox.NewService(apiClient, authSvc, store, logger)
	badge := inbox.NewBadge(apiClient, authSvc, store, logger)

	for {
		var err error
		if store.State() == domain.StateAuthenticated {
			err = homeMenu(ctx, reader, store, authSvc, inboxSvc, badge)
		} else {
			err = loginMenu(ctx, reader, authSvc)
		}
		if errors.Is(err, errQuit) {
			return err
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func loginMenu(ctx context.Context, reader *bufio.Reader, authSvc *auth.Service) error {
	fmt.Println("\n===== clipfeed =====")
	fmt.Println("[1] Iniciar sesion")
	fmt.Println("[2] Crear cuenta")
	fmt.Println("[3] Salir")
	fmt.Print("Selecciona una opcion: ")

	choice, err := readLine(reader)
	if err != nil {
		return err
	}
	switch choice {
	case "1":
		username, err := prompt(reader, "Email o usuario: ")
		if err != nil {
			return err
		}
		password, err := prompt(reader, "Contrasena: ")
		if err != nil {
			return err
		}
		if _, err := authSvc.SignIn(ctx, username, password); err != nil {
			return describe(err, "No se pudo iniciar sesion. Revisa tus credenciales.")
		}
	case "2":
		username, err := prompt(reader, "Usuario: ")
		if err != nil {
			return err
		}
		email, err := prompt(reader, "Email: ")
		if err != nil {
			return err
		}
		password, err := prompt(reader, "Contrasena: ")
		if err != nil {
			return err
		}
		if _, err := authSvc.SignUp(ctx, username, email, password); err != nil {
			return describe(err, "No se pudo crear la cuenta. Intenta de nuevo.")
		}
	case "3":
		return errQuit
	default:
		fmt.Println("Opcion invalida.")
	}
	return nil
}

func homeMenu(
	ctx context.Context,
	reader *bufio.Reader,
	store *session.Store,
	authSvc *auth.Service,
	inboxSvc *inbox.Service,
	badge *inbox.Badge,
) error {
	id := store.Identity()
	if id == nil {
		return nil
	}
	if err := badge.Refresh(ctx); err != nil {
		logBadgeError(err)
	}

	fmt.Printf("\n--- @%s (inbox: %d) ---\n", id.User.Username, badge.Count())
	fmt.Println("[1] Perfil")
	fmt.Println("[2] Inbox")
	fmt.Println("[3] Cerrar sesion")
	fmt.Println("[4] Salir")
	fmt.Print("Selecciona una opcion: ")

	choice, err := readLine(reader)
	if err != nil {
		return err
	}
	switch choice {
	case "1":
		u, err := authSvc.Profile(ctx)
		if err != nil {
			return fmt.Errorf("perfil: %w", err)
		}
		fmt.Printf("%s  seguidores=%d siguiendo=%d likes=%d videos=%d\n",
			u.Username, u.FollowerCount, u.FollowingCount, u.HeartCount, u.VideoCount)
		if u.Bio != "" {
			fmt.Println(u.Bio)
		}
	case "2":
		items, err := inboxSvc.Open(ctx)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("Todavia no hay notificaciones.")
		}
		for _, n := range items {
			marker := " "
			if !n.Seen {
				marker = "*"
			}
			fmt.Printf("%s %s  (hace %s)\n", marker, n.Content, time.Since(n.CreatedAt).Round(time.Minute))
		}
	case "3":
		authSvc.SignOut(ctx)
		fmt.Println("Sesion cerrada.")
	case "4":
		return errQuit
	default:
		fmt.Println("Opcion invalida.")
	}
	return nil
}

func describe(err error, generic string) error {
	var fieldErr *api.FieldError
	if errors.As(err, &fieldErr) {
		return fmt.Errorf("campos requeridos: %s", strings.Join(fieldErr.Fields, ", "))
	}
	return errors.New(generic)
}

func logBadgeError(err error) {
	if errors.Is(err, auth.ErrSessionExpired) {
		fmt.Println("La sesion expiro. Vuelve a iniciar sesion.")
		return
	}
	log.Printf("badge: %v", err)
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	return readLine(reader)
}

// readLine trata el fin de stdin como salida del programa.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", errQuit
	}
	return strings.TrimSpace(line), nil
}
