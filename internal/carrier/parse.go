package carrier

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// timelineEntry 明细表里的一条配送纪录
type timelineEntry struct {
	status string
	date   string // YYYYMMDD
}

// parseStatusPage 解析状态查询页
// 结构：<ul class="order-list"> 下的 .col-2 依序为 单号 / 状态 / 更新时间
func parseStatusPage(body []byte) (statusText, updateTime string, ok bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", false
	}

	list := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "ul" && hasClass(n, "order-list")
	})
	if list == nil {
		return "", "", false
	}

	cols := findAll(list, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "col-2")
	})
	if len(cols) < 2 {
		return "", "", false
	}

	statusText = strings.TrimSpace(nodeText(cols[1]))
	if statusText == "" {
		return "", "", false
	}
	if len(cols) >= 3 {
		updateTime = strings.TrimSpace(nodeText(cols[2]))
	}
	return statusText, updateTime, true
}

// parseDetailPage 解析明细页 #resultTable，取「已集貨」那行的日期
// 找不到集貨纪录时退回最后一条纪录的日期；
// 表格缺失或没有任何可用纪录视为解析失败（由调用方重试）
func parseDetailPage(body []byte, collectedLabel string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse detail page: %w", err)
	}

	table := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && attrVal(n, "id") == "resultTable"
	})
	if table == nil {
		return "", fmt.Errorf("detail table not found")
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})

	var timeline []timelineEntry
	for _, row := range rows {
		strong := findNode(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "strong"
		})
		spans := findAll(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "bl12")
		})

		// 两种行结构：粗体状态 + 两个 bl12（标签、日期），或者只有两个 bl12
		var statusText, rawDate string
		switch {
		case strong != nil && len(spans) >= 2:
			statusText = strings.TrimSpace(nodeText(strong))
			rawDate = strings.TrimSpace(nodeText(spans[1]))
		case len(spans) >= 2:
			statusText = strings.TrimSpace(nodeText(spans[0]))
			rawDate = strings.TrimSpace(nodeText(spans[1]))
		default:
			continue
		}

		date, err := formatTimelineDate(rawDate)
		if err != nil {
			continue
		}
		timeline = append(timeline, timelineEntry{status: statusText, date: date})
	}

	if len(timeline) == 0 {
		return "", fmt.Errorf("detail table has no usable rows")
	}

	for _, entry := range timeline {
		if entry.status == collectedLabel {
			return entry.date, nil
		}
	}
	return timeline[len(timeline)-1].date, nil
}

// formatTimelineDate "2024/05/01 10:00" -> "20240501"
func formatTimelineDate(raw string) (string, error) {
	datePart := strings.Fields(raw)
	if len(datePart) == 0 {
		return "", fmt.Errorf("empty date")
	}
	t, err := time.Parse("2006/01/02", datePart[0])
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", raw, err)
	}
	return t.Format("20060102"), nil
}

// findNode 深度优先找第一个匹配节点
func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll 深度优先收集所有匹配节点（文档顺序）
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

// hasClass 节点 class 属性是否包含指定类名
func hasClass(n *html.Node, class string) bool {
	for _, name := range strings.Fields(attrVal(n, "class")) {
		if name == class {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// nodeText 拼接节点下所有文本
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
