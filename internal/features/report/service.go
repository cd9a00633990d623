package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-edu/internal/features/approval"
	"go-edu/internal/features/institution"

	"github.com/xuri/excelize/v2"
)

type ReportService interface {
	// ExportHierarchy writes the full institution tree to a workbook, one
	// row per node with its materialized path.
	ExportHierarchy(ctx context.Context, includeInactive bool) ([]byte, string, error)
	// ExportApprovals writes filtered approval requests plus an analytics
	// summary sheet.
	ExportApprovals(ctx context.Context, filters map[string]interface{}) ([]byte, string, error)
}

type ReportServiceImpl struct {
	Hierarchy institution.HierarchyService
	Approvals approval.ApprovalService
}

func NewReportService(hierarchy institution.HierarchyService, approvals approval.ApprovalService) ReportService {
	return &ReportServiceImpl{
		Hierarchy: hierarchy,
		Approvals: approvals,
	}
}

func newWorkbook(sheetName string) (*excelize.File, int, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	f.SetActiveSheet(index)
	return f, index, nil
}

func writeHeader(f *excelize.File, sheetName string, columns []string) {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
}

func (s *ReportServiceImpl) ExportHierarchy(ctx context.Context, includeInactive bool) ([]byte, string, error) {
	roots, err := s.Hierarchy.GetHierarchy(ctx, institution.MaxQueryDepth, includeInactive)
	if err != nil {
		return nil, "", err
	}

	sheetName := "Institutions"
	f, _, err := newWorkbook(sheetName)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	columns := []string{"ID", "Name", "Type", "Level", "UTIS Code", "Path", "Active", "Children"}
	writeHeader(f, sheetName, columns)

	row := 2
	var walk func(node *institution.TreeNode, path []string)
	walk = func(node *institution.TreeNode, path []string) {
		path = append(path, node.Name)
		values := []interface{}{
			node.ID.Hex(),
			node.Name,
			node.Type,
			node.Level,
			node.UtisCode,
			strings.Join(path, " / "),
			node.IsActive,
			node.ChildrenCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
		row++
		for _, child := range node.Children {
			walk(child, path)
		}
	}
	for _, root := range roots {
		walk(root, nil)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("institutions-%s.xlsx", time.Now().Format("2006-01-02"))
	return buffer.Bytes(), filename, nil
}

func (s *ReportServiceImpl) ExportApprovals(ctx context.Context, filters map[string]interface{}) ([]byte, string, error) {
	requests, err := s.Approvals.ListRequests(ctx, filters, 1, 10000)
	if err != nil {
		return nil, "", err
	}
	analytics, err := s.Approvals.Analytics(ctx)
	if err != nil {
		return nil, "", err
	}

	sheetName := "Requests"
	f, _, err := newWorkbook(sheetName)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	columns := []string{"ID", "Workflow", "Item Type", "Item ID", "Status", "Level", "Submitted By", "Submitted At", "Deadline", "Completed At"}
	writeHeader(f, sheetName, columns)

	for rowIdx, req := range requests {
		completed := ""
		if req.CompletedAt != nil {
			completed = req.CompletedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			req.ID.Hex(),
			req.WorkflowType,
			req.ApprovableType,
			req.ApprovableID,
			req.CurrentStatus,
			req.CurrentLevel,
			req.SubmittedBy,
			req.SubmittedAt.Format("2006-01-02 15:04:05"),
			req.Deadline.Format("2006-01-02 15:04:05"),
			completed,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, "", err
	}
	writeHeader(f, summary, []string{"Metric", "Value"})
	summaryRows := [][]interface{}{
		{"Open requests", analytics.Open},
		{"Overdue requests", analytics.Overdue},
		{"Avg completion (hours)", analytics.AvgCompletionHours},
	}
	for _, sc := range analytics.ByStatus {
		summaryRows = append(summaryRows, []interface{}{fmt.Sprintf("Status: %s", sc.Status), sc.Count})
	}
	for rowIdx, pair := range summaryRows {
		for col, v := range pair {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			f.SetCellValue(summary, cell, v)
		}
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("approvals-%s.xlsx", time.Now().Format("2006-01-02"))
	return buffer.Bytes(), filename, nil
}
