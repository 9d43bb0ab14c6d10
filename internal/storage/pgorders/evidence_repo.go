package pgorders

import (
	"context"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/pkg/errors"
)

func (s *Storage) InsertEvidence(ctx context.Context, e *models.Evidence) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO evidence (id, order_id, stage_key, file_name, artifact_ref, uploaded_by, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, e.ID, e.OrderID, e.StageKey, e.FileName, e.ArtifactRef, e.UploadedBy, e.UploadedAt.UTC())
	return errors.Wrap(err, "insert evidence")
}

func (s *Storage) ListEvidence(ctx context.Context, orderID string, stage pipeline.StageKey) ([]*models.Evidence, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, stage_key, file_name, artifact_ref, uploaded_by, uploaded_at
FROM evidence
WHERE order_id = $1 AND ($2::text = '' OR stage_key = $2::text)
ORDER BY uploaded_at, id
`, orderID, string(stage))
	if err != nil {
		return nil, errors.Wrap(err, "select evidence")
	}
	defer rows.Close()

	out := make([]*models.Evidence, 0)
	for rows.Next() {
		var e models.Evidence
		if err := rows.Scan(&e.ID, &e.OrderID, &e.StageKey, &e.FileName, &e.ArtifactRef, &e.UploadedBy, &e.UploadedAt); err != nil {
			return nil, errors.Wrap(err, "scan evidence")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
