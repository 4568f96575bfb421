package repository

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/walleai/walle-agent/internal/model"
)

// SheetsRepository хранит карты в листе Google Sheets: одна строка — одна
// карта, первая строка — заголовок. Соединение создаётся один раз и
// переиспользуется всем процессом.
type SheetsRepository struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	sheetID       int64
}

// NewSheetsRepository создаёт репозиторий и проверяет, что лист существует.
func NewSheetsRepository(ctx context.Context, credentialsFile, spreadsheetID, worksheet string) (*SheetsRepository, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	meta, err := svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets(properties(sheetId,title))").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}

	sheetID := int64(-1)
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == worksheet {
			sheetID = sh.Properties.SheetId
			break
		}
	}
	if sheetID < 0 {
		return nil, fmt.Errorf("worksheet %q not found in spreadsheet", worksheet)
	}

	return &SheetsRepository{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		sheetID:       sheetID,
	}, nil
}

// Close освобождает ресурсы репозитория. Для Sheets ничего закрывать не нужно.
func (r *SheetsRepository) Close() error {
	return nil
}

func (r *SheetsRepository) readRange() string {
	return fmt.Sprintf("%s!A:G", r.worksheet)
}

func (r *SheetsRepository) values(ctx context.Context) ([][]any, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.readRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet: %w", err)
	}
	return resp.Values, nil
}

// Load возвращает профиль пользователя: все его строки в порядке следования
// в листе. Бенефиты не восстанавливаются.
func (r *SheetsRepository) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	values, err := r.values(ctx)
	if err != nil {
		return nil, err
	}

	profile := model.NewUserProfile(userID)
	for i, row := range values {
		if i == 0 {
			continue // заголовок
		}
		if cellString(row, colUserID) != userID {
			continue
		}
		profile.AddCard(cardFromRow(row))
	}
	return profile, nil
}

// Save добавляет одну строку с картой в конец листа.
func (r *SheetsRepository) Save(ctx context.Context, userID string, card model.CreditCard) error {
	body := &sheets.ValueRange{Values: [][]any{rowFromCard(userID, card)}}

	_, err := r.svc.Spreadsheets.Values.Append(r.spreadsheetID, r.readRange(), body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// Update перезаписывает index-ю строку пользователя.
func (r *SheetsRepository) Update(ctx context.Context, userID string, index int, card model.CreditCard) error {
	rowNum, err := r.userRowNumber(ctx, userID, index)
	if err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]any{rowFromCard(userID, card)}}
	updateRange := fmt.Sprintf("%s!A%d:G%d", r.worksheet, rowNum, rowNum)

	_, err = r.svc.Spreadsheets.Values.Update(r.spreadsheetID, updateRange, body).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %d: %w", rowNum, err)
	}
	return nil
}

// Delete удаляет index-ю строку пользователя, не затрагивая чужие строки.
func (r *SheetsRepository) Delete(ctx context.Context, userID string, index int) error {
	rowNum, err := r.userRowNumber(ctx, userID, index)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    r.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1), // API использует нумерацию с 0
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}

	_, err = r.svc.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete row %d: %w", rowNum, err)
	}
	return nil
}

// userRowNumber возвращает абсолютный номер index-й строки пользователя.
func (r *SheetsRepository) userRowNumber(ctx context.Context, userID string, index int) (int, error) {
	values, err := r.values(ctx)
	if err != nil {
		return 0, err
	}

	rows := userRowNumbers(values, userID)
	if index < 0 || index >= len(rows) {
		return 0, fmt.Errorf("%w: index %d, user has %d cards", ErrCardIndexOutOfRange, index, len(rows))
	}
	return rows[index], nil
}
