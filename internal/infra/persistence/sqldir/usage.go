package sqldir

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"barcoder/pkg/domain"
)

// AddLabelCount adds c.NumPrinted to the counter of (printer, project, user)
// in one transaction. The printer is resolved by name and location, the
// project by /SPACE/PROJECT.
func (s *Store) AddLabelCount(ctx context.Context, c domain.LabelCount) error {
	if c.NumPrinted < 0 {
		return fmt.Errorf("negative label count %d", c.NumPrinted)
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var printerID int
		err := s.get(ctx, tx, &printerID, `SELECT id FROM labelprinter WHERE name = ? AND location = ?`,
			c.PrinterName, c.PrinterLocation)
		if err != nil {
			return notFound(err, "printer", c.PrinterLocation+"/"+c.PrinterName)
		}
		var projectID int
		err = s.get(ctx, tx, &projectID, `SELECT id FROM projects WHERE openbis_project_identifier = ?`,
			c.ProjectIdentifier())
		if err != nil {
			return notFound(err, "project", c.ProjectIdentifier())
		}
		err = s.exec(ctx, tx, `INSERT INTO printed_label_counts (printer_id, project_id, user_name, num_printed)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (printer_id, project_id, user_name)
			DO UPDATE SET num_printed = printed_label_counts.num_printed + excluded.num_printed`,
			printerID, projectID, c.UserName, c.NumPrinted)
		if err != nil {
			return fmt.Errorf("upsert label count: %w", err)
		}
		return nil
	})
}

type countRow struct {
	PrinterName     string `db:"name"`
	PrinterLocation string `db:"location"`
	Project         string `db:"openbis_project_identifier"`
	UserName        string `db:"user_name"`
	NumPrinted      int    `db:"num_printed"`
}

// LabelCounts lists every usage row ordered by project, printer and user.
func (s *Store) LabelCounts(ctx context.Context) ([]domain.LabelCount, error) {
	var rows []countRow
	err := sqlxSelect(ctx, s, &rows, `SELECT labelprinter.name, labelprinter.location,
			projects.openbis_project_identifier, printed_label_counts.user_name, printed_label_counts.num_printed
		FROM printed_label_counts
		JOIN labelprinter ON labelprinter.id = printed_label_counts.printer_id
		JOIN projects ON projects.id = printed_label_counts.project_id
		ORDER BY projects.openbis_project_identifier, labelprinter.location, labelprinter.name, printed_label_counts.user_name`)
	if err != nil {
		return nil, fmt.Errorf("select label counts: %w", err)
	}
	out := make([]domain.LabelCount, 0, len(rows))
	for _, r := range rows {
		space, project := SplitProjectIdentifier(r.Project)
		out = append(out, domain.LabelCount{
			PrinterName:     r.PrinterName,
			PrinterLocation: r.PrinterLocation,
			Space:           space,
			Project:         project,
			UserName:        r.UserName,
			NumPrinted:      r.NumPrinted,
		})
	}
	return out, nil
}

// SplitProjectIdentifier splits /SPACE/PROJECT into its parts.
func SplitProjectIdentifier(id string) (space, project string) {
	parts := strings.SplitN(strings.TrimPrefix(id, "/"), "/", 2)
	if len(parts) < 2 {
		return "", parts[0]
	}
	return parts[0], parts[1]
}
