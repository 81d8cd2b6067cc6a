package gsheet

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store 基于 Google Sheets + Drive API 的台账存取实现
// 一个「表」对应 Drive 上的一份试算表文件，读写都落在首个工作表上
type Store struct {
	sheets *sheets.Service
	drive  *drive.Service

	// spreadsheetIDs 表名到试算表文件 ID 的缓存，ListSheets 时填充
	spreadsheetIDs map[string]string
}

// NewStore 创建 Store 实例，credentialsFile 是服务账号凭证 JSON 路径
func NewStore(ctx context.Context, credentialsFile string) (*Store, error) {
	sheetsSvc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Store{
		sheets:         sheetsSvc,
		drive:          driveSvc,
		spreadsheetIDs: make(map[string]string),
	}, nil
}

// ListSheets 列出服务账号可见的全部试算表文件名
func (s *Store) ListSheets(ctx context.Context) ([]string, error) {
	var names []string
	pageToken := ""
	for {
		call := s.drive.Files.List().
			Context(ctx).
			Q("mimeType='application/vnd.google-apps.spreadsheet' and trashed=false").
			Fields("nextPageToken, files(id, name)").
			PageSize(100)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list spreadsheets: %w", err)
		}

		for _, f := range resp.Files {
			s.spreadsheetIDs[f.Name] = f.Id
			names = append(names, f.Name)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return names, nil
}

// ReadAll 读取整张表（首个工作表）的全部值
func (s *Store) ReadAll(ctx context.Context, sheetName string) ([][]string, error) {
	id, err := s.resolveID(ctx, sheetName)
	if err != nil {
		return nil, err
	}

	tab, err := s.firstTabName(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.sheets.Spreadsheets.Values.Get(id, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprintf("%v", cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteAll 整块覆写首个工作表：先清空再写入，避免残留旧行
func (s *Store) WriteAll(ctx context.Context, sheetName string, values [][]string) error {
	id, err := s.resolveID(ctx, sheetName)
	if err != nil {
		return err
	}

	tab, err := s.firstTabName(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.sheets.Spreadsheets.Values.Clear(id, tab, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", sheetName, err)
	}

	raw := make([][]interface{}, 0, len(values))
	for _, row := range values {
		cells := make([]interface{}, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cell)
		}
		raw = append(raw, cells)
	}

	body := &sheets.ValueRange{Values: raw}
	if _, err := s.sheets.Spreadsheets.Values.Update(id, tab, body).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", sheetName, err)
	}

	return nil
}

func (s *Store) resolveID(ctx context.Context, sheetName string) (string, error) {
	if id, ok := s.spreadsheetIDs[sheetName]; ok {
		return id, nil
	}

	// 缓存没命中就重新拉一遍文件列表
	if _, err := s.ListSheets(ctx); err != nil {
		return "", err
	}

	id, ok := s.spreadsheetIDs[sheetName]
	if !ok {
		return "", fmt.Errorf("spreadsheet not found: %s", sheetName)
	}
	return id, nil
}

func (s *Store) firstTabName(ctx context.Context, spreadsheetID string) (string, error) {
	meta, err := s.sheets.Spreadsheets.Get(spreadsheetID).
		Fields("sheets(properties(title,index))").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet metadata: %w", err)
	}
	if len(meta.Sheets) == 0 {
		return "", fmt.Errorf("spreadsheet has no worksheets: %s", spreadsheetID)
	}
	return meta.Sheets[0].Properties.Title, nil
}
