package presenter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
)

// Saver stores an export and returns where it went.
type Saver interface {
	Save(filename string, data []byte) (string, error)
}

// Opener shows a URL to the user.
type Opener interface {
	Open(url string) error
}

// Copier places text on the clipboard.
type Copier interface {
	Copy(text string) error
}

// DirSaver writes exports into Dir.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(filename string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// BrowserOpener opens URLs in the system browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	return browser.OpenURL(url)
}

// ClipboardCopier uses the system clipboard.
type ClipboardCopier struct{}

func (ClipboardCopier) Copy(text string) error {
	return clipboard.WriteAll(text)
}
