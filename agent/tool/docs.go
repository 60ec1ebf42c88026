package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

type DocUpdateResult struct {
	Success bool   `json:"success"`
	DocID   string `json:"docId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SheetUpdateResult struct {
	Success       bool   `json:"success"`
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// executeUpdateGoogleDoc writes the document through the workspace adapter
// and appends a DocUpdate entry on success. Upstream failures degrade to a
// structured {success:false} result — never an uncaught fault — so the model
// can react conversationally; no DocUpdate is appended in that case.
func executeUpdateGoogleDoc(ctx context.Context, env Env, args map[string]any) (contractx.ToolResult, error) {
	var params struct {
		DocID   string `json:"docId"`
		Content string `json:"content"`
		Title   string `json:"title"`
	}
	if err := decodeParams(args, &params); err != nil {
		return contractx.ToolResult{Tool: ToolUpdateGoogleDoc, Error: err.Error()}, nil
	}
	if params.DocID == "" || params.Content == "" {
		return contractx.ToolResult{
			Tool:  ToolUpdateGoogleDoc,
			Error: fmt.Sprintf("%v: docId and content are required", contractx.ErrValidation),
		}, nil
	}

	if env.Workspace == nil {
		return docFailure("google workspace credential is not available"), nil
	}
	if err := env.Workspace.UpdateDoc(ctx, params.DocID, params.Content); err != nil {
		log.Error().Err(err).Str("doc_id", params.DocID).Msg("failed to update google doc")
		return docFailure(err.Error()), nil
	}

	env.State.AppendDocUpdate(contractx.DocUpdate{
		DocID:     params.DocID,
		Title:     params.Title,
		Content:   params.Content,
		UpdatedAt: env.now().UTC(),
	})
	return contractx.ToolResult{
		Tool:   ToolUpdateGoogleDoc,
		Result: DocUpdateResult{Success: true, DocID: params.DocID},
	}, nil
}

// executeUpdateGoogleSheet follows the same non-throwing contract as the doc
// tool.
func executeUpdateGoogleSheet(ctx context.Context, env Env, args map[string]any) (contractx.ToolResult, error) {
	var params struct {
		SpreadsheetID string  `json:"spreadsheetId"`
		Range         string  `json:"range"`
		Values        [][]any `json:"values"`
	}
	if err := decodeParams(args, &params); err != nil {
		return contractx.ToolResult{Tool: ToolUpdateGoogleSheet, Error: err.Error()}, nil
	}
	if params.SpreadsheetID == "" || params.Range == "" || params.Values == nil {
		return contractx.ToolResult{
			Tool:  ToolUpdateGoogleSheet,
			Error: fmt.Sprintf("%v: spreadsheetId, range, and values are required", contractx.ErrValidation),
		}, nil
	}

	if env.Workspace == nil {
		return sheetFailure("google workspace credential is not available"), nil
	}
	if err := env.Workspace.UpdateSheet(ctx, params.SpreadsheetID, params.Range, params.Values); err != nil {
		log.Error().Err(err).Str("spreadsheet_id", params.SpreadsheetID).Msg("failed to update google sheet")
		return sheetFailure(err.Error()), nil
	}

	return contractx.ToolResult{
		Tool:   ToolUpdateGoogleSheet,
		Result: SheetUpdateResult{Success: true, SpreadsheetID: params.SpreadsheetID},
	}, nil
}

func docFailure(msg string) contractx.ToolResult {
	return contractx.ToolResult{
		Tool:   ToolUpdateGoogleDoc,
		Result: DocUpdateResult{Success: false, Error: msg},
	}
}

func sheetFailure(msg string) contractx.ToolResult {
	return contractx.ToolResult{
		Tool:   ToolUpdateGoogleSheet,
		Result: SheetUpdateResult{Success: false, Error: msg},
	}
}

func decodeParams(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encode tool arguments: %v", contractx.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: tool arguments are malformed: %v", contractx.ErrValidation, err)
	}
	return nil
}
