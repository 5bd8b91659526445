package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shkarik/ordering/pkg/models"
)

// Storage persists the cart snapshot between runs, the way the web storefront
// keeps it in localStorage.
type Storage interface {
	Save(items []models.CartItem) error
	Load() ([]models.CartItem, error)
}

type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Save(items []models.CartItem) error {
	if len(items) == 0 {
		err := os.Remove(f.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear cart file: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write cart file: %w", err)
	}
	return nil
}

func (f *FileStorage) Load() ([]models.CartItem, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}
