package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siteops/sheetsync/analyzer"
)

// Priority levels for a missing-data notification.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// caps applied when rendering a notification, matching what fits in a
// readable email
const (
	maxFieldsPerNotification = 5
	maxProjectsPerField      = 5
	maxProjectsInline        = 3
	maxOwnersInSlackSummary  = 5
)

// MissingNotification is one owner's pending missing-data alert.
type MissingNotification struct {
	Owner        string                   `json:"owner"`
	TotalMissing int                      `json:"total_missing"`
	Fields       []analyzer.FieldProjects `json:"fields"`
	Email        string                   `json:"email"`
	Priority     string                   `json:"priority"`
}

// CheckMissingData extracts the owners whose missing-data count meets
// the threshold, ordered worst first. Priority escalates to high at
// twice the threshold.
func CheckMissingData(report analyzer.MissingReport, threshold int, salesEmails map[string]string) []MissingNotification {
	var out []MissingNotification
	for owner, info := range report.OwnerAnalysis {
		if info.TotalMissing < threshold {
			continue
		}

		fields := info.CriticalMissing
		if len(fields) > maxFieldsPerNotification {
			fields = fields[:maxFieldsPerNotification]
		}
		capped := make([]analyzer.FieldProjects, len(fields))
		for i, f := range fields {
			capped[i] = f
			if len(f.Projects) > maxProjectsPerField {
				capped[i].Projects = f.Projects[:maxProjectsPerField]
			}
		}

		priority := PriorityNormal
		if info.TotalMissing >= threshold*2 {
			priority = PriorityHigh
		}
		out = append(out, MissingNotification{
			Owner:        owner,
			TotalMissing: info.TotalMissing,
			Fields:       capped,
			Email:        salesEmails[owner],
			Priority:     priority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalMissing != out[j].TotalMissing {
			return out[i].TotalMissing > out[j].TotalMissing
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

// SuppressionKey is the identity under which one owner's missing-data
// alert is deduplicated. An alert already bundles every project and
// field the owner is behind on, so the key rolls up to the owner
// instead of keying each project and field separately. The owner gets
// at most one alert per suppression window even as the set of gaps
// shifts between runs.
func (n MissingNotification) SuppressionKey() string {
	return "missing:" + n.Owner
}

// formatWon renders a decimal with thousands separators.
func formatWon(d decimal.Decimal) string {
	s := d.StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func projectsInline(projects []string) string {
	if len(projects) == 0 {
		return ""
	}
	shown := projects
	if len(shown) > maxProjectsInline {
		shown = shown[:maxProjectsInline]
	}
	text := strings.Join(shown, ", ")
	if len(projects) > maxProjectsInline {
		text += fmt.Sprintf(" 외 %d건", len(projects)-maxProjectsInline)
	}
	return text
}

// BuildMissingDataEmail renders the subject, plain body and HTML body
// of one owner's missing-data request email.
func BuildMissingDataEmail(n MissingNotification, sheetURL string, now time.Time) (subject, body, htmlBody string) {
	prefix := ""
	if n.Priority == PriorityHigh {
		prefix = "[긴급] "
	}
	subject = fmt.Sprintf("%s%s님 - 공사 데이터 입력 요청 (%d건 누락)", prefix, n.Owner, n.TotalMissing)

	var b strings.Builder
	fmt.Fprintf(&b, "안녕하세요 %s님,\n\n", n.Owner)
	b.WriteString("공사 관리 시스템에서 다음과 같은 데이터 입력이 누락되어 있습니다.\n")
	b.WriteString("빠른 시일 내에 입력 부탁드립니다.\n\n")
	fmt.Fprintf(&b, "총 누락 항목: %d건\n\n상세 내역:\n", n.TotalMissing)
	for _, f := range n.Fields {
		fmt.Fprintf(&b, "• %s: %d건 누락\n", f.Field, f.MissingCount)
		if inline := projectsInline(f.Projects); inline != "" {
			fmt.Fprintf(&b, "  - 해당 프로젝트: %s\n", inline)
		}
	}
	b.WriteString("\n데이터 입력 완료 후 회신 부탁드립니다.\n\n감사합니다.\n공사 현황 관리시스템\n")
	fmt.Fprintf(&b, "발송시간: %s\n", now.Format("2006년 01월 02일 15:04"))
	body = b.String()

	headerColor, headerTitle := "#667eea", "데이터 입력 요청"
	if n.Priority == PriorityHigh {
		headerColor, headerTitle = "#dc3545", "긴급 데이터 입력 요청"
	}
	var h strings.Builder
	h.WriteString(`<!DOCTYPE html><html lang="ko"><head><meta charset="UTF-8"><style>`)
	h.WriteString(`body{font-family:'Malgun Gothic',Arial,sans-serif;line-height:1.6;padding:20px}`)
	h.WriteString(`.container{max-width:600px;margin:0 auto;background:#f9f9f9;padding:30px;border-radius:10px}`)
	fmt.Fprintf(&h, `.header{background:%s;color:white;padding:20px;border-radius:5px;text-align:center;margin-bottom:20px}`, headerColor)
	h.WriteString(`.content{background:white;padding:20px;border-radius:5px}`)
	h.WriteString(`.missing-item{background:#fff3cd;border:1px solid #ffeaa7;padding:10px;margin:10px 0;border-radius:5px}`)
	h.WriteString(`.projects{font-size:12px;color:#666;margin-left:20px}`)
	h.WriteString(`.footer{text-align:center;margin-top:20px;font-size:12px;color:#666}`)
	h.WriteString(`</style></head><body><div class="container">`)
	fmt.Fprintf(&h, `<div class="header"><h2>%s</h2></div><div class="content">`, headerTitle)
	fmt.Fprintf(&h, `<h3>안녕하세요 %s님,</h3>`, html.EscapeString(n.Owner))
	h.WriteString(`<p>공사 관리 시스템에서 다음과 같은 데이터 입력이 누락되어 있습니다.</p>`)
	fmt.Fprintf(&h, `<p><strong>총 누락 항목: %d건</strong></p><h4>상세 내역:</h4>`, n.TotalMissing)
	for _, f := range n.Fields {
		fmt.Fprintf(&h, `<div class="missing-item"><strong>• %s: %d건 누락</strong>`, html.EscapeString(f.Field), f.MissingCount)
		if inline := projectsInline(f.Projects); inline != "" {
			fmt.Fprintf(&h, `<div class="projects">해당 프로젝트: %s</div>`, html.EscapeString(inline))
		}
		h.WriteString(`</div>`)
	}
	h.WriteString(`<p style="margin-top:20px">데이터 입력 완료 후 회신 부탁드립니다.</p>`)
	if sheetURL != "" {
		fmt.Fprintf(&h, `<p><strong>구글 시트 바로가기:</strong> <a href="%s" target="_blank">여기를 클릭하세요</a></p>`, html.EscapeString(sheetURL))
	}
	h.WriteString(`</div><div class="footer"><p>공사 현황 관리시스템<br>`)
	fmt.Fprintf(&h, `발송시간: %s</p></div></div></body></html>`, now.Format("2006년 01월 02일 15:04"))
	htmlBody = h.String()

	return subject, body, htmlBody
}

// BuildMissingSummarySlack renders the Slack roll-up posted after a
// missing-data notification run.
func BuildMissingSummarySlack(notifs []MissingNotification, emailSent, emailFailed int, now time.Time) string {
	var b strings.Builder
	b.WriteString("🔔 데이터 입력 알림 발송 완료\n\n")
	fmt.Fprintf(&b, "총 %d명의 영업사원에게 알림 발송\n", len(notifs))
	fmt.Fprintf(&b, "• 이메일 발송 성공: %d건\n", emailSent)
	fmt.Fprintf(&b, "• 이메일 발송 실패: %d건\n\n알림 대상:\n", emailFailed)
	for i, n := range notifs {
		if i == maxOwnersInSlackSummary {
			b.WriteString("...\n")
			break
		}
		fmt.Fprintf(&b, "• %s: %d건 누락\n", n.Owner, n.TotalMissing)
	}
	fmt.Fprintf(&b, "\n발송시간: %s", now.Format("2006-01-02 15:04:05"))
	return b.String()
}

// BuildDailySummaryEmail renders the admin daily report.
func BuildDailySummaryEmail(s analyzer.Summary, o analyzer.OutstandingReport, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("[일일보고] 공사 현황 요약 - %s", now.Format("2006.01.02"))

	var b strings.Builder
	b.WriteString("일일 공사 현황 요약 보고서\n\n📊 전체 현황:\n")
	fmt.Fprintf(&b, "• 총 프로젝트: %d건\n", s.TotalProjects)
	fmt.Fprintf(&b, "• 완료 프로젝트: %d건\n", s.CompletedProjects)
	fmt.Fprintf(&b, "• 진행중 프로젝트: %d건\n", s.InProgressProjects)
	fmt.Fprintf(&b, "• 총 매출: %s원\n", formatWon(s.TotalAmount))
	fmt.Fprintf(&b, "• 총 미수금: %s원\n", formatWon(s.TotalOutstanding))
	fmt.Fprintf(&b, "• 회수율: %s%%\n\n💰 미수금 현황:\n", s.CollectionRate.StringFixed(1))
	fmt.Fprintf(&b, "• 미수금 건수: %d건\n", o.TotalCases)
	fmt.Fprintf(&b, "• 미수금 총액: %s원\n\n", formatWon(o.TotalAmount))
	fmt.Fprintf(&b, "발송시간: %s\n", now.Format("2006년 01월 02일 15:04"))
	return subject, b.String()
}

// BuildDailySummarySlack renders the short Slack variant of the daily
// report.
func BuildDailySummarySlack(s analyzer.Summary, o analyzer.OutstandingReport, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 일일 현황 요약 (%s)\n\n", now.Format("2006.01.02"))
	fmt.Fprintf(&b, "총 프로젝트: %d건\n", s.TotalProjects)
	fmt.Fprintf(&b, "완료: %d건 | 진행중: %d건\n", s.CompletedProjects, s.InProgressProjects)
	fmt.Fprintf(&b, "총 매출: %s원\n", formatWon(s.TotalAmount))
	fmt.Fprintf(&b, "미수금: %s원 (%d건)\n", formatWon(o.TotalAmount), o.TotalCases)
	fmt.Fprintf(&b, "회수율: %s%%", s.CollectionRate.StringFixed(1))
	return b.String()
}
