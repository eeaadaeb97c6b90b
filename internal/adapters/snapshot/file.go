package snapshot

// file.go — formato portable para correr regression/what-if sin conexión al
// storage (CI): un array JSON de records. Los timestamps viajan como texto
// RFC 3339 y se rehidratan a time.Time al cargar.

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alejandrodnm/repricer/internal/domain"
)

// Write serializa el batch al archivo dado.
func Write(path string, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot.Write: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot.Write: write %q: %w", path, err)
	}
	return nil
}

// Read carga el batch desde el archivo dado.
func Read(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Read: read %q: %w", path, err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("snapshot.Read: parse %q: %w", path, err)
	}
	return records, nil
}
