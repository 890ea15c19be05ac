package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bethreewater/island7/internal/cms/caseid"
	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/xuri/excelize/v2"
)

// 文件类型
const (
	DocEvaluation     = "evaluation"
	DocContract       = "contract"
	DocInvoiceDeposit = "invoice_deposit"
	DocInvoiceFinal   = "invoice_final"
)

const (
	companyName = "海島七號工程 / ISLAND NO. 7 ENGINEERING"
	companyVAT  = "統一編號 / VAT: XXXXXXXX"
	docSheet    = "文件"
)

var docTitles = map[string]string{
	DocEvaluation:     "現場評估報告 EVALUATION REPORT",
	DocContract:       "工程承攬合約 CONSTRUCTION CONTRACT",
	DocInvoiceDeposit: "頭期款請款單 DEPOSIT PAYMENT REQUEST",
	DocInvoiceFinal:   "尾款請款單 FINAL PAYMENT REQUEST",
}

// DocumentService 案件文件
type DocumentService struct {
	cases *CaseService
}

// NewDocumentService 创建文件服务
func NewDocumentService(cases *CaseService) *DocumentService {
	return &DocumentService{cases: cases}
}

// Generate 生成案件文件，价格以系统重算结果为准
func (s *DocumentService) Generate(ctx context.Context, caseID, kind string) (*excelize.File, string, error) {
	title, ok := docTitles[kind]
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown document type %q", ErrValidation, kind)
	}
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, "", err
	}
	recompute(c)
	q := estimate.BuildQuotation(c.Zones, c.ManualPriceAdjustment)

	w, err := newDocWriter(title)
	if err != nil {
		return nil, "", err
	}
	displayID := DisplayCaseID(c.CaseID, c.CustomerName)

	switch kind {
	case DocEvaluation:
		w.writeEvaluation(c, displayID, q)
	case DocContract:
		w.writeContract(c, q)
	case DocInvoiceDeposit:
		w.writeInvoice(c, displayID, q, true, s.cases.now().Format(estimate.DateLayout))
	case DocInvoiceFinal:
		w.writeInvoice(c, displayID, q, false, s.cases.now().Format(estimate.DateLayout))
	}
	w.finish()

	return w.f, fmt.Sprintf("%s_%s.xlsx", kind, displayID), nil
}

// DisplayCaseID 编号中的客户名随当前客户名显示
func DisplayCaseID(id, customerName string) string {
	parsed, err := caseid.Parse(id)
	if err != nil {
		return id
	}
	if name := caseid.SanitizeName(customerName); name != "" {
		parsed.Name = name
	}
	return parsed.String()
}

// FormatCurrency 新台币金额，千分位
func FormatCurrency(amount int) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := strconv.Itoa(amount)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + "NT$" + s
}

type docWriter struct {
	f      *excelize.File
	row    int
	title  int
	header int
	bold   int
}

func newDocWriter(title string) (*docWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", docSheet); err != nil {
		return nil, fmt.Errorf("init workbook: %w", err)
	}
	w := &docWriter{f: f, row: 1}
	w.title, _ = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	w.header, _ = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	w.bold, _ = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	w.set("A", title)
	w.style("A", "A", w.title)
	w.row++
	w.set("A", "海島七號工程管理系統 | ISLAND NO. 7 ENGINEERING SYSTEM")
	w.row += 2
	return w, nil
}

func (w *docWriter) set(col string, v interface{}) {
	w.f.SetCellValue(docSheet, fmt.Sprintf("%s%d", col, w.row), v)
}

func (w *docWriter) style(from, to string, style int) {
	w.f.SetCellStyle(docSheet, fmt.Sprintf("%s%d", from, w.row), fmt.Sprintf("%s%d", to, w.row), style)
}

func (w *docWriter) line(values ...interface{}) {
	for i, v := range values {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.set(col, v)
	}
	w.row++
}

func (w *docWriter) headerRow(values ...string) {
	for i, v := range values {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.set(col, v)
	}
	last, _ := excelize.ColumnNumberToName(len(values))
	w.style("A", last, w.header)
	w.row++
}

func (w *docWriter) boldLine(values ...interface{}) {
	last, _ := excelize.ColumnNumberToName(len(values))
	w.style("A", last, w.bold)
	w.line(values...)
}

func (w *docWriter) finish() {
	w.row += 2
	w.line(companyName)
	w.line(companyVAT)
	for i, width := range []float64{28, 36, 14, 16} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.f.SetColWidth(docSheet, col, col, width)
	}
}

func (w *docWriter) writeEvaluation(c *entity.Case, displayID string, q estimate.Quotation) {
	w.boldLine("客戶資料 / CLIENT INFO")
	w.line("案件編號 / CASE ID", displayID)
	w.line("客戶姓名 / CLIENT", c.CustomerName)
	w.line("建立日期 / DATE", c.CreatedDate.Format(estimate.DateLayout))
	w.line("工程地址 / ADDRESS", c.Address)
	w.row++

	for i := range c.Zones {
		zone := &c.Zones[i]
		w.boldLine(fmt.Sprintf("區域 %d: %s", i+1, zone.ZoneName), zone.MethodName)
		w.headerRow("項次 / NO.", "規格 / SPEC", "坪數 / AREA", "價格 / PRICE")
		for j, item := range zone.Items {
			spec := fmt.Sprintf("%g x %g cm", item.Length, item.Width)
			if !estimate.IsAreaUnit(zone.Unit) {
				spec = fmt.Sprintf("%g %s", item.Quantity, zone.Unit)
			}
			area := "-"
			if item.AreaPing > 0 {
				area = fmt.Sprintf("%g 坪", item.AreaPing)
			}
			w.line(fmt.Sprintf("#%d", j+1), spec, area, FormatCurrency(item.ItemPrice))
		}
		w.line("", "", "小計", FormatCurrency(estimate.ZoneTotal(zone)))
		w.row++
	}

	if q.ManualAdjustment != 0 {
		w.line("", "", "調整", FormatCurrency(q.ManualAdjustment))
	}
	w.boldLine("", "", "總金額 / TOTAL", FormatCurrency(q.FinalPrice))
}

func (w *docWriter) writeContract(c *entity.Case, q estimate.Quotation) {
	w.boldLine("甲方 (業主) / CLIENT", "乙方 (承攬) / CONTRACTOR")
	w.line(c.CustomerName, companyName)
	w.line("地址: "+c.Address, companyVAT)
	w.line("電話: " + c.Phone)
	w.row++

	note := c.SpecialNote
	if note == "" {
		note = "無 (None)"
	}
	w.boldLine("合約條款 / TERMS AND CONDITIONS")
	for _, term := range []string{
		"一、 工程範圍：詳如附件「現勘評估報告」。(Scope of Work: As per Evaluation Report)",
		fmt.Sprintf("二、 合約總價：%s (含稅)。(Total Amount: Tax Included)", FormatCurrency(q.FinalPrice)),
		"三、 付款方式 (Payment Schedule)：",
		fmt.Sprintf("    1. 訂金 (70%%)：%s，簽約時支付。", FormatCurrency(q.Deposit)),
		fmt.Sprintf("    2. 尾款 (30%%)：%s，完工驗收後支付。", FormatCurrency(q.FinalPayment)),
		"四、 保固期限 (Warranty)：",
		"    - 防水工程：保固兩年 (Waterproofing: 2 Years)",
		"    - 結構補強：保固一年 (Structural: 1 Year)",
		"五、 附註 (Notes)：",
		"    " + note,
	} {
		w.line(term)
	}
	w.row += 2
	w.boldLine("立合約書人簽署 / SIGNATURES")
	w.line("甲方簽章 (Client)", "乙方簽章 (Contractor)")
}

func (w *docWriter) writeInvoice(c *entity.Case, displayID string, q estimate.Quotation, deposit bool, today string) {
	w.line("客戶名稱 / BILL TO", c.CustomerName)
	w.line("案件編號 / CASE NO", displayID)
	w.line("開立日期 / DATE", today)
	w.row++

	w.headerRow("項目說明 / DESCRIPTION", "金額 / AMOUNT (TWD)")
	w.line("工程總價 / TOTAL PROJECT VALUE", FormatCurrency(q.FinalPrice))
	if deposit {
		w.boldLine("本次請款: 訂金 (70%) / DEPOSIT DUE", FormatCurrency(q.Deposit))
		w.line("( 餘額待完工驗收後支付 / Balance upon completion )", FormatCurrency(q.FinalPayment))
	} else {
		w.line("已付訂金 / LESS: DEPOSIT PAID", "-"+FormatCurrency(q.Deposit))
		w.boldLine("本次請款: 尾款 (30%) / FINAL PAYMENT DUE", FormatCurrency(q.FinalPayment))
	}
	w.row++

	w.boldLine("匯款資訊 / PAYMENT DETAILS")
	w.line("銀行代碼: 822 (中國信託)")
	w.line("銀行帳號: 1234-5678-9012-3456")
	w.line("戶名: " + companyName)
}
