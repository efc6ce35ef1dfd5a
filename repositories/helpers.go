package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Dosada05/elo-arena/models"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check affected rows: %w", ErrStorageIO, err)
	}
	if rowsAffected == 0 {
		return notFoundError // Возвращаем переданную ошибку "не найдено"
	}
	return nil
}

// validProjectID rejects ids that cannot be used as a document key (file name or row id).
func validProjectID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, `/\.`+"\x00")
}

func encodeProject(p *models.Project) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode project %s: %w", p.ID, err)
	}
	return data, nil
}

func decodeProject(id string, data []byte) (*models.Project, error) {
	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, id, err)
	}
	if p.ID != id {
		return nil, fmt.Errorf("%w: document %s carries id %q", ErrCorruptDocument, id, p.ID)
	}
	p.Normalize()
	return &p, nil
}
