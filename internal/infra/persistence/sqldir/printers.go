package sqldir

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v3"

	"barcoder/pkg/domain"
)

type printerRow struct {
	Location  string      `db:"location"`
	Name      string      `db:"name"`
	URL       string      `db:"url"`
	Type      string      `db:"type"`
	AdminOnly bool        `db:"admin_only"`
	UserGroup null.String `db:"user_group"`
}

func (r printerRow) printer() domain.Printer {
	return domain.Printer{
		Location:  r.Location,
		Name:      r.Name,
		Host:      r.URL,
		Type:      domain.ParsePrinterType(r.Type),
		AdminOnly: r.AdminOnly,
		UserGroup: r.UserGroup.String,
	}
}

func sqlxSelect(ctx context.Context, s *Store, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.db, dest, s.db.Rebind(query), args...)
}

// AddPrinter inserts p or updates the printer with the same name and location.
func (s *Store) AddPrinter(ctx context.Context, p domain.Printer) (int, error) {
	var id int
	err := s.get(ctx, s.db, &id, `INSERT INTO labelprinter (name, location, url, type, admin_only, user_group)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, location) DO UPDATE SET url = excluded.url, type = excluded.type,
			admin_only = excluded.admin_only, user_group = excluded.user_group
		RETURNING id`, p.Name, p.Location, p.Host, string(p.Type), p.AdminOnly, nullable(p.UserGroup))
	if err != nil {
		return 0, fmt.Errorf("upsert printer %s: %w", p.Name, err)
	}
	return id, nil
}

func (s *Store) AssociatePrinter(ctx context.Context, printerID, projectID int) error {
	return s.exec(ctx, s.db, `INSERT INTO printer_project_association (printer_id, project_id) VALUES (?, ?)
		ON CONFLICT (printer_id, project_id) DO NOTHING`, printerID, projectID)
}

// PrintersForProject offers the non admin printers associated with project
// (matched as identifier suffix), every admin only printer and every printer
// whose user group matches one of userGroups ignoring case. On a lookup
// failure the result is the default printer and err describes the failure.
func (s *Store) PrintersForProject(ctx context.Context, project string, userGroups []string) ([]domain.Printer, error) {
	var associated []printerRow
	err := sqlxSelect(ctx, s, &associated, `SELECT labelprinter.location, labelprinter.name, labelprinter.url,
			labelprinter.type, labelprinter.admin_only, labelprinter.user_group
		FROM projects
		JOIN printer_project_association ON projects.id = printer_project_association.project_id
		JOIN labelprinter ON labelprinter.id = printer_project_association.printer_id
		WHERE projects.openbis_project_identifier LIKE ?
		ORDER BY labelprinter.location, labelprinter.name`, "%"+project)
	if err != nil {
		return []domain.Printer{domain.DefaultPrinter}, fmt.Errorf("project printers: %w", err)
	}
	var all []printerRow
	err = sqlxSelect(ctx, s, &all, `SELECT location, name, url, type, admin_only, user_group
		FROM labelprinter ORDER BY location, name`)
	if err != nil {
		return []domain.Printer{domain.DefaultPrinter}, fmt.Errorf("printers: %w", err)
	}
	return domain.VisiblePrinters(rowsToPrinters(associated), rowsToPrinters(all), userGroups), nil
}

func rowsToPrinters(rows []printerRow) []domain.Printer {
	out := make([]domain.Printer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.printer())
	}
	return out
}
