package domain

import "strings"

// Affiliation is an organization entry a person belongs to.
type Affiliation struct {
	ID           int    `json:"id" db:"id"`
	GroupName    string `json:"group_name" db:"group_name"`
	Acronym      string `json:"acronym" db:"group_acronym"`
	Organization string `json:"organization" db:"umbrella_organization"`
	Institute    string `json:"institute" db:"institute"`
	Faculty      string `json:"faculty" db:"faculty"`
	Street       string `json:"street" db:"street"`
	ZipCode      string `json:"zip_code" db:"zip_code"`
	City         string `json:"city" db:"city"`
	Country      string `json:"country" db:"country"`
	Webpage      string `json:"webpage" db:"webpage"`
}

// Label renders the short affiliation shown for a person: the group name
// with its acronym, else the institute, else the umbrella organization.
func (a Affiliation) Label() string {
	if !blankOrNull(a.GroupName) {
		if a.Acronym != "" {
			return a.GroupName + " (" + a.Acronym + ")"
		}
		return a.GroupName
	}
	if !blankOrNull(a.Institute) {
		return a.Institute
	}
	return a.Organization
}

func blankOrNull(s string) bool {
	return s == "" || strings.EqualFold(s, "NULL")
}

// Person is a directory person, e.g. the investigator or contact of a project.
type Person struct {
	ID          int          `json:"id"`
	Username    string       `json:"username"`
	Title       string       `json:"title"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	Affiliation *Affiliation `json:"affiliation,omitempty"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Project roles stored in projects_persons.
const (
	RolePI      = "PI"
	RoleContact = "Contact"
	RoleManager = "Manager"
)

// PrinterType classifies label printers.
type PrinterType string

const (
	PrinterLabel PrinterType = "Label Printer"
	PrinterA4    PrinterType = "A4 Printer"
)

// ParsePrinterType maps stored type strings, accepting either spaces or underscores.
func ParsePrinterType(s string) PrinterType {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", " ") {
	case "a4 printer":
		return PrinterA4
	default:
		return PrinterLabel
	}
}

// Printer is a label printer reachable through the print server at Host.
type Printer struct {
	Location  string      `json:"location"`
	Name      string      `json:"name"`
	Host      string      `json:"host"`
	Type      PrinterType `json:"type"`
	AdminOnly bool        `json:"admin_only"`
	UserGroup string      `json:"user_group,omitempty"`
}

// Key identifies a printer within a set.
func (p Printer) Key() string { return p.Location + "\x00" + p.Name }

// DefaultPrinter is offered when the directory cannot be queried.
var DefaultPrinter = Printer{
	Location:  "QBiC LAB",
	Name:      "TSC_TTP-343C",
	Host:      "printserv.qbic.uni-tuebingen.de",
	Type:      PrinterLabel,
	AdminOnly: true,
}

// LabelCount is one usage accounting row keyed by printer, project and user.
type LabelCount struct {
	PrinterName     string `json:"printer_name" csv:"printer"`
	PrinterLocation string `json:"printer_location" csv:"location"`
	Space           string `json:"space" csv:"space"`
	Project         string `json:"project" csv:"project"`
	UserName        string `json:"user_name" csv:"user"`
	NumPrinted      int    `json:"num_printed" csv:"num_printed"`
}

// ProjectIdentifier returns /SPACE/PROJECT for the counted project.
func (c LabelCount) ProjectIdentifier() string {
	return ProjectIdentifier(c.Space, c.Project)
}

// VisiblePrinters applies the printer visibility rules: the non admin
// printers associated with a project, every admin only printer, and every
// printer whose user group matches one of userGroups ignoring case. Each
// printer appears once, in first seen order.
func VisiblePrinters(associated, all []Printer, userGroups []string) []Printer {
	seen := make(map[string]struct{})
	var out []Printer
	add := func(p Printer) {
		if _, ok := seen[p.Key()]; ok {
			return
		}
		seen[p.Key()] = struct{}{}
		out = append(out, p)
	}
	for _, p := range associated {
		if !p.AdminOnly {
			add(p)
		}
	}
	for _, p := range all {
		if p.AdminOnly {
			add(p)
			continue
		}
		if p.UserGroup == "" {
			continue
		}
		for _, g := range userGroups {
			if strings.EqualFold(g, p.UserGroup) {
				add(p)
				break
			}
		}
	}
	return out
}
