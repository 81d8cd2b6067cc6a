package manifest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// FileFetcher 从本地文件读出货单，给 operator 手动补跑用
// 文件不存在视为「今天没有出货单」，返回空附件而不是错误
type FileFetcher struct {
	Path string
}

func (f FileFetcher) Fetch(ctx context.Context, targetDate time.Time) ([]Attachment, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest file: %w", err)
	}
	return []Attachment{Attachment(data)}, nil
}

// CSVParser 解析 CSV 出货单附件
// 列序固定：order_number, tracking_number, channel_mark（首行为表头）
type CSVParser struct{}

func (CSVParser) Parse(ctx context.Context, attachments []Attachment) ([]Entry, error) {
	var entries []Entry
	for _, attachment := range attachments {
		reader := csv.NewReader(bytes.NewReader(attachment))
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse manifest csv: %w", err)
		}
		for i, record := range records {
			if i == 0 || len(record) < 2 {
				continue
			}
			entry := Entry{
				OrderNumber:    record[0],
				TrackingNumber: record[1],
			}
			if len(record) > 2 {
				entry.ChannelMark = record[2]
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
