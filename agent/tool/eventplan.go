package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

type EventPlanResult struct {
	Success   bool                 `json:"success"`
	EventPlan *contractx.EventPlan `json:"eventPlan,omitempty"`
}

// executeCreateEventPlan validates the full plan schema and, only then,
// replaces the session's current plan wholesale. There is no partial-plan
// update path.
func executeCreateEventPlan(env Env, args map[string]any) (contractx.ToolResult, error) {
	plan, err := decodeEventPlan(args)
	if err != nil {
		return contractx.ToolResult{
			Tool:  ToolCreateEventPlan,
			Error: err.Error(),
		}, nil
	}

	env.State.SetPlan(plan)
	return contractx.ToolResult{
		Tool: ToolCreateEventPlan,
		Result: EventPlanResult{
			Success:   true,
			EventPlan: plan,
		},
	}, nil
}

func decodeEventPlan(args map[string]any) (*contractx.EventPlan, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encode plan arguments: %v", contractx.ErrValidation, err)
	}

	var plan contractx.EventPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: plan arguments are malformed: %v", contractx.ErrValidation, err)
	}
	if err := validateEventPlan(&plan, args); err != nil {
		return nil, err
	}
	return &plan, nil
}

func validateEventPlan(plan *contractx.EventPlan, args map[string]any) error {
	var missing []string
	if strings.TrimSpace(plan.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(plan.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(plan.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(plan.Location.Name) == "" {
		missing = append(missing, "location.name")
	}
	if strings.TrimSpace(plan.Location.Address) == "" {
		missing = append(missing, "location.address")
	}
	// a null agenda decodes to a nil slice, so key presence alone is not enough
	if v, ok := args["agenda"]; !ok || v == nil {
		missing = append(missing, "agenda")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required plan fields: %s", contractx.ErrValidation, strings.Join(missing, ", "))
	}

	for i, item := range plan.Agenda {
		if strings.TrimSpace(item.Time) == "" || strings.TrimSpace(item.Activity) == "" {
			return fmt.Errorf("%w: agenda entry %d needs time and activity", contractx.ErrValidation, i)
		}
	}
	return nil
}
