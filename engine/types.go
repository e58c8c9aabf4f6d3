/*
types.go - Core data model for the sheet-sync engine

PURPOSE:
  Defines the Row and Snapshot types shared by every component, the sheet
  column schema, and the structured project-code helpers.

DATA MODEL:
  Row       Ordered-by-schema mapping of column name -> string value.
            A missing column reads as the empty string; the sheet is a
            loosely typed store and the boundary normalizes everything
            to strings.
  Snapshot  Immutable point-in-time copy of all rows plus a content
            fingerprint. A new Snapshot always replaces, never mutates,
            the current one.

PROJECT CODES:
  A structured code has the form <Prefix><Sequence>-<Suffix>:
    Prefix    single uppercase letter, learned per company
    Sequence  zero-padded 4-digit decimal, global across all prefixes
    Suffix    one or more uppercase letters, learned per owner
  Example: G0042-YG

SEE ALSO:
  - fingerprint.go: Fingerprint computation
  - mapping.go: Prefix/suffix learning
  - allocator.go: Code allocation
*/
package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SHEET SCHEMA
// =============================================================================

// Well-known column names. The sheet carries Korean headers; these constants
// are the single place the spelling lives.
const (
	ColProjectCode  = "프로젝트 코드"
	ColCompany      = "사업자"
	ColOwner        = "담당자"
	ColClient       = "거래처"
	ColAddress      = "현장 주소"
	ColWorkType     = "공사 구분"
	ColMachineType  = "기계 분류"
	ColBrand        = "브랜드"
	ColWorkStart    = "공사 시작"
	ColWorkEnd      = "공사 종료"
	ColWorkDetail   = "공사 내용"
	ColContractType = "도급 구분"
	ColConstructor  = "시공자"
	ColSiteManager  = "현장 담당자"
	ColManagerPhone = "담당자 연락처"
	ColManagerEmail = "담당자 이메일"
	ColAmount1      = "총액 1"
	ColVAT          = "부가세"
	ColAmount2      = "총액 2"
	ColDownPayment  = "계약금"
	ColMidPayment   = "중도금"
	ColFinalPayment = "잔금"
	ColOutstanding  = "미수금"
	ColInvoice      = "계산서"
	ColPaymentDate  = "수금 날짜"
	ColPaymentOK    = "수금 확인"
	ColProductCost  = "제품대"
	ColLaborCost    = "도급비"
	ColMaterialCost = "자재비"
	ColOtherCost    = "기타비"
	ColNetProfit    = "순익"
	ColMarginRate   = "마진율"
	ColNotes        = "비고"
	ColDownPayer    = "계약금 입금자명"
	ColMidPayer     = "중도금 입금자명"
	ColFinalPayer   = "잔금 입금자명"
	ColDocFolder    = "견적서 및 계약서 폴더 경로"
	ColConfirmed    = "공사 확정"
	ColExternalID   = "Airtable Record ID"
)

// SheetColumns is the canonical column order (sheet columns A through AM).
// Sources that write whole rows serialize values in this order.
var SheetColumns = []string{
	ColProjectCode, ColCompany, ColOwner, ColClient, ColAddress,
	ColWorkType, ColMachineType, ColBrand, ColWorkStart, ColWorkEnd,
	ColWorkDetail, ColContractType, ColConstructor, ColSiteManager,
	ColManagerPhone, ColManagerEmail, ColAmount1, ColVAT, ColAmount2,
	ColDownPayment, ColMidPayment, ColFinalPayment, ColOutstanding,
	ColInvoice, ColPaymentDate, ColPaymentOK, ColProductCost,
	ColLaborCost, ColMaterialCost, ColOtherCost, ColNetProfit,
	ColMarginRate, ColNotes, ColDownPayer, ColMidPayer, ColFinalPayer,
	ColDocFolder, ColConfirmed, ColExternalID,
}

// =============================================================================
// ROW
// =============================================================================

// Row is one business record. Values are strings as rendered by the sheet;
// absent columns read as "".
type Row map[string]string

// Get returns the trimmed value of a column, "" when absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Code returns the row's project code, "" when unset.
func (r Row) Code() string {
	return r.Get(ColProjectCode)
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable ordered sequence of rows with a content
// fingerprint and a capture timestamp. Components treat it as read-only;
// replacement is whole-value (see SnapshotStore).
type Snapshot struct {
	Columns     []string
	Rows        []Row
	Fingerprint uint64
	CapturedAt  time.Time
}

// NewSnapshot builds a fingerprinted snapshot from fetched content.
func NewSnapshot(columns []string, rows []Row, at time.Time) *Snapshot {
	return &Snapshot{
		Columns:     columns,
		Rows:        rows,
		Fingerprint: Fingerprint(columns, rows),
		CapturedAt:  at,
	}
}

// Codes returns all non-empty project codes in row order.
func (s *Snapshot) Codes() []string {
	codes := make([]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if c := row.Code(); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// HasCode reports whether any row carries the given project code.
func (s *Snapshot) HasCode(code string) bool {
	for _, row := range s.Rows {
		if row.Code() == code {
			return true
		}
	}
	return false
}

// =============================================================================
// STRUCTURED CODE PARSING
// =============================================================================

var (
	codePrefixRe   = regexp.MustCompile(`^([A-Z])\d{4}-`)
	codeSequenceRe = regexp.MustCompile(`^[A-Z](\d{4})-`)
	codeSuffixRe   = regexp.MustCompile(`^[A-Z]\d{4}-([A-Z]+)$`)
)

// CodePrefix extracts the prefix letter from a structured code, "" when the
// code does not match the pattern.
func CodePrefix(code string) string {
	m := codePrefixRe.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	return m[1]
}

// CodeSequence extracts the sequence number from a structured code.
// The second return is false for malformed codes.
func CodeSequence(code string) (int, bool) {
	m := codeSequenceRe.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CodeSuffix extracts the suffix from a structured code, "" when malformed.
// Unlike CodePrefix this anchors the full code so trailing garbage is
// rejected.
func CodeSuffix(code string) string {
	m := codeSuffixRe.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	return m[1]
}
