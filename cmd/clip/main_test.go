package main

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadLine_EOFQuits(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("  hola \n"))
	line, err := readLine(reader)
	if err != nil || line != "hola" {
		t.Fatalf("unexpected line %q err=%v", line, err)
	}
	if _, err := readLine(reader); !errors.Is(err, errQuit) {
		t.Fatalf("expected errQuit at EOF, got %v", err)
	}
}

func TestLoginMenu_SalirReturnsQuit(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("3\n"))
	if err := loginMenu(context.Background(), reader, nil); !errors.Is(err, errQuit) {
		t.Fatalf("expected errQuit, got %v", err)
	}

	reader = bufio.NewReader(strings.NewReader("1\nalice\n"))
	if err := loginMenu(context.Background(), reader, nil); !errors.Is(err, errQuit) {
		t.Fatalf("expected errQuit when stdin ends mid-prompt, got %v", err)
	}
}
