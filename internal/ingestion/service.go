// Package ingestion imports cards into a list from tabular uploads
// (.csv or .xlsx). Row-level problems are reported, not fatal: valid rows
// still import.
package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/taskboard/internal/domain"
	"github.com/rpattn/taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	timeLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
	}
)

// Column headers recognized in uploads, matched case-insensitively.
const (
	columnName        = "name"
	columnDescription = "description"
	columnStage       = "stage"
	columnAssignee    = "assignee"
	columnDueDate     = "due date"
)

// Service imports tabular card data into a list.
type Service struct {
	cards  repository.CardRepository
	stages repository.StageRepository
	users  repository.UserRepository
}

// NewService creates a new ingestion service.
func NewService(
	cards repository.CardRepository,
	stages repository.StageRepository,
	users repository.UserRepository,
) *Service {
	return &Service{
		cards:  cards,
		stages: stages,
		users:  users,
	}
}

// Request describes the import input.
type Request struct {
	ListID   uuid.UUID
	FileName string
	Data     io.Reader
}

// RowError captures a row-level problem.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary reports the import outcome.
type Summary struct {
	FileName     string     `json:"fileName"`
	RowsTotal    int        `json:"rowsTotal"`
	RowsImported int        `json:"rowsImported"`
	Errors       []RowError `json:"errors,omitempty"`
}

// Import parses the upload and creates one card per valid row. Stage and
// assignee cells are matched by display name against the list's stages and
// the owning project's members.
func (s *Service) Import(ctx context.Context, req Request) (Summary, error) {
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read upload: %w", err)
	}

	rows, err := parseRows(req.FileName, payload)
	if err != nil {
		return Summary{}, err
	}
	if len(rows) == 0 {
		return Summary{}, errors.New("no rows found in file")
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return Summary{}, err
	}

	stageIDs, err := s.stageIDsByName(ctx, req.ListID)
	if err != nil {
		return Summary{}, err
	}
	userIDs, err := s.userIDsByName(ctx, req.ListID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{FileName: req.FileName}
	for idx, row := range rows[1:] {
		rowNumber := idx + 2 // 1-based, after the header
		if isEmptyRow(row) {
			continue
		}
		summary.RowsTotal++

		card, rowErr := buildCard(req.ListID, row, columns, stageIDs, userIDs)
		if rowErr != "" {
			summary.Errors = append(summary.Errors, RowError{RowNumber: rowNumber, Message: rowErr})
			continue
		}

		if _, err := s.cards.Create(ctx, card); err != nil {
			summary.Errors = append(summary.Errors, RowError{RowNumber: rowNumber, Message: err.Error()})
			continue
		}
		summary.RowsImported++
	}

	return summary, nil
}

func (s *Service) stageIDsByName(ctx context.Context, listID uuid.UUID) (map[string]uuid.UUID, error) {
	stages, err := s.stages.FindAll(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	ids := make(map[string]uuid.UUID, len(stages))
	for _, stage := range stages {
		ids[strings.ToLower(stage.Name)] = stage.ID
	}
	return ids, nil
}

func (s *Service) userIDsByName(ctx context.Context, listID uuid.UUID) (map[string]uuid.UUID, error) {
	members, err := s.users.ListMembersByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("load project members: %w", err)
	}
	ids := make(map[string]uuid.UUID, len(members))
	for _, member := range members {
		ids[strings.ToLower(member.FullName())] = member.ID
	}
	return ids, nil
}

func buildCard(listID uuid.UUID, row []string, columns map[string]int, stageIDs, userIDs map[string]uuid.UUID) (domain.Card, string) {
	card := domain.Card{ListID: listID}

	card.Name = strings.TrimSpace(cell(row, columns, columnName))
	if card.Name == "" {
		return domain.Card{}, "name is required"
	}
	card.Description = strings.TrimSpace(cell(row, columns, columnDescription))

	if raw := strings.TrimSpace(cell(row, columns, columnStage)); raw != "" {
		id, ok := stageIDs[strings.ToLower(raw)]
		if !ok {
			return domain.Card{}, fmt.Sprintf("unknown stage %q", raw)
		}
		card.StageID = &id
	}

	if raw := strings.TrimSpace(cell(row, columns, columnAssignee)); raw != "" {
		id, ok := userIDs[strings.ToLower(raw)]
		if !ok {
			return domain.Card{}, fmt.Sprintf("unknown assignee %q", raw)
		}
		card.AssigneeID = &id
	}

	if raw := strings.TrimSpace(cell(row, columns, columnDueDate)); raw != "" {
		due, err := parseTime(raw)
		if err != nil {
			return domain.Card{}, fmt.Sprintf("invalid due date %q", raw)
		}
		card.DueDate = &due
	}

	return card, ""
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func mapColumns(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for idx, label := range header {
		key := strings.ToLower(strings.TrimSpace(label))
		key = strings.ReplaceAll(key, "_", " ")
		if key == "" {
			continue
		}
		if _, exists := columns[key]; !exists {
			columns[key] = idx
		}
	}
	if _, ok := columns[columnName]; !ok {
		return nil, errors.New("upload is missing a name column")
	}
	return columns, nil
}

func parseRows(fileName string, payload []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

func parseCSV(payload []byte) ([][]string, error) {
	csvReader := csv.NewReader(bytes.NewReader(payload))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func isEmptyRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
