package carrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusPageHTML = `<html><body>
<ul class="order-list">
  <li>
    <div class="col-2">9876543210</div>
    <div class="col-2">已集貨</div>
    <div class="col-2">2024/05/01 10:30</div>
  </li>
</ul>
</body></html>`

const detailPageHTML = `<html><body>
<table id="resultTable">
  <tr><td><strong>順利送達</strong><span class="bl12">順利送達</span><span class="bl12">2024/05/03 14:00</span></td></tr>
  <tr><td><span class="bl12">配送中</span><span class="bl12">2024/05/02 09:00</span></td></tr>
  <tr><td><span class="bl12">已集貨</span><span class="bl12">2024/05/01 10:30</span></td></tr>
</table>
</body></html>`

func TestParseStatusPage(t *testing.T) {
	statusText, updateTime, ok := parseStatusPage([]byte(statusPageHTML))
	require.True(t, ok)
	assert.Equal(t, "已集貨", statusText)
	assert.Equal(t, "2024/05/01 10:30", updateTime)
}

func TestParseStatusPageMissingList(t *testing.T) {
	_, _, ok := parseStatusPage([]byte(`<html><body><p>查無資料</p></body></html>`))
	assert.False(t, ok)
}

func TestParseStatusPageTooFewColumns(t *testing.T) {
	_, _, ok := parseStatusPage([]byte(`<html><body>
<ul class="order-list"><li><div class="col-2">9876543210</div></li></ul>
</body></html>`))
	assert.False(t, ok)
}

func TestParseDetailPageFindsCollectedRow(t *testing.T) {
	date, err := parseDetailPage([]byte(detailPageHTML), "已集貨")
	require.NoError(t, err)
	assert.Equal(t, "20240501", date)
}

func TestParseDetailPageFallsBackToLastRow(t *testing.T) {
	// 没有集貨纪录时取最后一条
	date, err := parseDetailPage([]byte(detailPageHTML), "不存在的狀態")
	require.NoError(t, err)
	assert.Equal(t, "20240501", date)
}

func TestParseDetailPageMissingTable(t *testing.T) {
	_, err := parseDetailPage([]byte(`<html><body></body></html>`), "已集貨")
	require.Error(t, err)
}

func TestParseDetailPageNoUsableRows(t *testing.T) {
	_, err := parseDetailPage([]byte(`<html><body>
<table id="resultTable"><tr><td>loading...</td></tr></table>
</body></html>`), "已集貨")
	require.Error(t, err)
}

func TestFormatTimelineDate(t *testing.T) {
	got, err := formatTimelineDate("2024/05/01 10:30")
	require.NoError(t, err)
	assert.Equal(t, "20240501", got)

	got, err = formatTimelineDate("2024/12/31")
	require.NoError(t, err)
	assert.Equal(t, "20241231", got)

	_, err = formatTimelineDate("")
	assert.Error(t, err)

	_, err = formatTimelineDate("05/01/2024")
	assert.Error(t, err)
}
