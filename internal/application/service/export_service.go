package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/domain/entity"
)

// ExportService renders a request's approval history as an Excel workbook.
type ExportService interface {
	ExportRecords(ctx context.Context, requestID int64) ([]byte, error)
}

type exportServiceImpl struct {
	requests port.ReimbursementRepository
	users    port.UserRepository
	records  port.RecordRepository
	logger   Logger
}

// NewExportService creates a new ExportService.
func NewExportService(
	requests port.ReimbursementRepository,
	users port.UserRepository,
	records port.RecordRepository,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		requests: requests,
		users:    users,
		records:  records,
		logger:   logger,
	}
}

var recordExportHeaders = []string{"节点", "审批人", "操作", "意见", "时间"}

var actionLabels = map[string]string{
	entity.ActionApprove: "通过",
	entity.ActionReject:  "驳回",
	entity.ActionReturn:  "退回修改",
	entity.ActionSkip:    "自动跳过",
}

func (s *exportServiceImpl) ExportRecords(ctx context.Context, requestID int64) ([]byte, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("%w: reimbursement %d", entity.ErrNotFound, requestID)
	}

	records, err := s.records.ListByReimbursement(ctx, requestID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("报销单 %s 审批记录", request.ReimbursementNo)); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	for i, header := range recordExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, record := range records {
		row := i + 3
		approverName := fmt.Sprintf("#%d", record.ApproverID)
		if user, err := s.users.GetByID(ctx, record.ApproverID); err == nil && user != nil {
			approverName = user.RealName
		}
		action := record.Action
		if label, ok := actionLabels[action]; ok {
			action = label
		}
		values := []interface{}{
			fmt.Sprintf("第%d步", record.NodeOrder),
			approverName,
			action,
			record.Opinion,
			record.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write record row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}

	s.logger.Info("Exported approval records",
		"reimbursement_id", requestID, "records", len(records))
	return buf.Bytes(), nil
}
