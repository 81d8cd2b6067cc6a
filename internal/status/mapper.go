package status

import "fmt"

// Mapper 黑貓状态词汇 -> Shopline 配送状态
// 纯查表，无 I/O；表内容来自配置，上游改文案只需改配置
type Mapper struct {
	table map[string]DeliveryStatus
}

// NewMapper 从配置表创建 Mapper
// 映射目标必须是合法的配送状态，启动期校验而不是运行期踩雷
func NewMapper(table map[string]string) (*Mapper, error) {
	m := &Mapper{table: make(map[string]DeliveryStatus, len(table))}
	for carrierText, target := range table {
		ds := DeliveryStatus(target)
		if !IsValidDelivery(ds) {
			return nil, fmt.Errorf("status_map: %q maps to unknown delivery status %q", carrierText, target)
		}
		m.table[carrierText] = ds
	}
	return m, nil
}

// ToDelivery 映射黑貓状态文字
// 表外文字返回 ok=false，表示不应尝试任何状态变更
func (m *Mapper) ToDelivery(carrierText string) (DeliveryStatus, bool) {
	ds, ok := m.table[carrierText]
	return ds, ok
}
