package queries

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-datainsight/components/insight"
)

// WorkspaceRequest identifies the workspace of a session.
type WorkspaceRequest struct {
	Workspace *insight.Workspace
}

// DashboardQuery derives the dashboard views without changing state.
type DashboardQuery struct {
	controller *insight.Controller
}

// NewDashboardQuery builds the query.
func NewDashboardQuery(controller *insight.Controller) *DashboardQuery {
	return &DashboardQuery{controller: controller}
}

var _ gocommand.Querier[WorkspaceRequest, insight.DashboardView] = (*DashboardQuery)(nil)

// Query derives every view of the workspace.
func (q *DashboardQuery) Query(ctx context.Context, req WorkspaceRequest) (insight.DashboardView, error) {
	if q.controller == nil || req.Workspace == nil {
		return insight.DashboardView{}, errors.New("dashboard query requires controller and workspace")
	}
	return q.controller.View(ctx, req.Workspace), nil
}

// EditRowRequest names the row to open in the editor.
type EditRowRequest struct {
	Workspace *insight.Workspace
	Index     int
}

// EditRowQuery snapshots a row into an edit form.
type EditRowQuery struct {
	controller *insight.Controller
}

// NewEditRowQuery builds the query.
func NewEditRowQuery(controller *insight.Controller) *EditRowQuery {
	return &EditRowQuery{controller: controller}
}

var _ gocommand.Querier[EditRowRequest, insight.EditForm] = (*EditRowQuery)(nil)

// Query opens the editor on the row.
func (q *EditRowQuery) Query(_ context.Context, req EditRowRequest) (insight.EditForm, error) {
	if q.controller == nil || req.Workspace == nil {
		return insight.EditForm{}, errors.New("edit row query requires controller and workspace")
	}
	return q.controller.OpenEditor(req.Workspace, req.Index)
}

// ReportQuery builds the export document. An empty workspace yields
// insight.ErrEmptyDataset.
type ReportQuery struct {
	controller *insight.Controller
}

// NewReportQuery builds the query.
func NewReportQuery(controller *insight.Controller) *ReportQuery {
	return &ReportQuery{controller: controller}
}

var _ gocommand.Querier[WorkspaceRequest, insight.ReportDocument] = (*ReportQuery)(nil)

// Query returns the report document.
func (q *ReportQuery) Query(ctx context.Context, req WorkspaceRequest) (insight.ReportDocument, error) {
	if q.controller == nil || req.Workspace == nil {
		return insight.ReportDocument{}, errors.New("report query requires controller and workspace")
	}
	return q.controller.Report(ctx, req.Workspace)
}
