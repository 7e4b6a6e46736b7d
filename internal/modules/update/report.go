package update

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const reportWidth = 72
const failSampleCap = 20

// GenerateReport renders the operator-facing run report. Pure string
// construction: file persistence and console echo belong to the entry
// point.
func GenerateReport(result *RunResult) string {
	var b strings.Builder
	sep := strings.Repeat("=", reportWidth)

	elapsed := result.FinishedAt.Sub(result.StartedAt)

	b.WriteString(sep + "\n")
	b.WriteString("  일별 데이터 업데이트 보고서\n")
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "  실행 일시 : %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "  완료 일시 : %s\n", result.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "  소요 시간 : %s\n", formatElapsed(elapsed))
	fmt.Fprintf(&b, "  업데이트 기간 : %s ~ %s\n",
		result.Window.Start.Format(dateLayout), result.Window.End.Format(dateLayout))
	fmt.Fprintf(&b, "  실행 ID : %s\n", result.RunID)
	b.WriteString("\n")

	if result.NoOp {
		b.WriteString("  업데이트할 데이터 없음 (저장소가 이미 최신 상태)\n\n")
		writeFooter(&b, sep)
		return b.String()
	}

	// Run summary
	writeSubHeader(&b, "1. 수집 요약")
	fmt.Fprintf(&b, "  %-16s %8s %8s %12s %12s %12s\n",
		"항목", "성공", "실패", "전체레코드", "신규/변경", "스킵(동일)")
	b.WriteString("  " + strings.Repeat("-", reportWidth-4) + "\n")
	writeStatsLine(&b, "OHLCV (일봉)", result.OHLCV, true)
	writeStatsLine(&b, "시가총액", result.MarketCap, false)
	writeStatsLine(&b, "투자자별 수급", result.Investor, true)

	totalRows := result.OHLCV.Rows + result.MarketCap.Rows + result.Investor.Rows
	totalChanged := result.OHLCV.Changed + result.MarketCap.Changed + result.Investor.Changed
	totalSkipped := result.OHLCV.Skipped + result.MarketCap.Skipped + result.Investor.Skipped
	b.WriteString("  " + strings.Repeat("-", reportWidth-4) + "\n")
	fmt.Fprintf(&b, "  %-16s %8s %8s %12s %12s %12s\n",
		"합계", "", "", commaInt(totalRows), commaInt(totalChanged), commaInt(totalSkipped))
	b.WriteString("\n")

	// Per-table detail
	writeSubHeader(&b, "2. 테이블별 상세 결과")
	writeTableDetail(&b, "ohlcv_daily", result.OHLCV, "")
	writeTableDetail(&b, "market_cap_daily", result.MarketCap, "close_price × listed_shares (hist API)")
	writeTableDetail(&b, "investor_trading", result.Investor, "")
	b.WriteString("\n")

	// Anomalies
	writeSubHeader(&b, "3. 특이사항")
	writeAnomalies(&b, result.Anomalies)

	// Failed symbols
	if result.OHLCV.Fail > 0 || result.Investor.Fail > 0 {
		writeSubHeader(&b, "4. API 수집 실패 종목")
		b.WriteString("\n  ※ 실패 원인: API 응답 없음 / 해당 날짜 데이터 없음 (휴장일, 신규상장 전)\n")
		writeFailList(&b, "OHLCV", result.OHLCV)
		writeFailList(&b, "수급", result.Investor)
		b.WriteString("\n")
	}

	writeFooter(&b, sep)
	return b.String()
}

func writeSubHeader(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n── %s %s\n", title, strings.Repeat("─", reportWidth-8-len([]rune(title))))
}

func writeFooter(b *strings.Builder, sep string) {
	b.WriteString(sep + "\n")
	fmt.Fprintf(b, "  보고서 생성: %s\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	b.WriteString(sep + "\n")
}

func writeStatsLine(b *strings.Builder, label string, s TableStats, hasSymbols bool) {
	success, fail := commaInt(s.Success), commaInt(s.Fail)
	if !hasSymbols {
		// Market cap shares the OHLCV symbol outcome; repeating the
		// counts would double-report.
		success, fail = "-", "-"
	}
	fmt.Fprintf(b, "  %-16s %8s %8s %12s %12s %12s\n",
		label, success, fail, commaInt(s.Rows), commaInt(s.Changed), commaInt(s.Skipped))
}

func writeTableDetail(b *strings.Builder, table string, s TableStats, derivation string) {
	fmt.Fprintf(b, "\n  [%s]\n", table)
	fmt.Fprintf(b, "    전체 건수  : %s건\n", commaInt(s.Rows))
	fmt.Fprintf(b, "    신규/변경  : %s건\n", commaInt(s.Changed))
	fmt.Fprintf(b, "    스킵(동일) : %s건\n", commaInt(s.Skipped))
	if derivation != "" {
		fmt.Fprintf(b, "    산출 방식  : %s\n", derivation)
	} else {
		fmt.Fprintf(b, "    성공 종목  : %s개\n", commaInt(s.Success))
		fmt.Fprintf(b, "    실패 종목  : %s개\n", commaInt(s.Fail))
		if len(s.FailSymbols) > 0 {
			sample := s.FailSymbols
			suffix := ""
			if len(sample) > failSampleCap {
				suffix = fmt.Sprintf(" 외 %d개", len(sample)-failSampleCap)
				sample = sample[:failSampleCap]
			}
			fmt.Fprintf(b, "    실패 코드  : %s%s\n", strings.Join(sample, ", "), suffix)
		}
	}
}

// writeAnomalies groups by category in the fixed section order and sorts by
// magnitude descending within each group.
func writeAnomalies(b *strings.Builder, anomalies []Anomaly) {
	if len(anomalies) == 0 {
		b.WriteString("\n  특이사항 없음\n\n")
		return
	}

	byCategory := make(map[AnomalyCategory][]Anomaly)
	for _, a := range anomalies {
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	fmt.Fprintf(b, "\n  총 %d건의 특이사항이 감지되었습니다.\n\n", len(anomalies))

	for _, category := range anomalyCategoryOrder {
		items := byCategory[category]
		if len(items) == 0 {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			return math.Abs(items[i].Magnitude) > math.Abs(items[j].Magnitude)
		})

		fmt.Fprintf(b, "  [%s] %d건\n", category, len(items))
		fmt.Fprintf(b, "  %-12s %-10s %-18s %s\n", "날짜", "종목코드", "종목명", "상세")
		b.WriteString("  " + strings.Repeat("-", reportWidth-4) + "\n")
		for _, a := range items {
			date := "-"
			if !a.Date.IsZero() {
				date = a.Date.Format(dateLayout)
			}
			fmt.Fprintf(b, "  %-12s %-10s %-18s %s\n", date, a.Symbol, truncate(a.Name, 16), a.Detail)
		}
		b.WriteString("\n")
	}
}

func writeFailList(b *strings.Builder, label string, s TableStats) {
	if len(s.FailSymbols) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s 실패 (%d개):\n", label, s.Fail)
	sample := s.FailSymbols
	if len(sample) > failSampleCap {
		sample = sample[:failSampleCap]
	}
	for _, symbol := range sample {
		fmt.Fprintf(b, "    - %s\n", symbol)
	}
	if overflow := len(s.FailSymbols) - len(sample); overflow > 0 {
		fmt.Fprintf(b, "    ... 외 %d개\n", overflow)
	}
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%d시간 %d분 %d초", secs/3600, secs%3600/60, secs%60)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// comma formats a float that is logically an integer KRW amount.
func comma(v float64) string {
	return commaInt(int(v))
}

func commaInt(v int) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return sign + s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return sign + strings.Join(parts, ",")
}
