package inference

import (
	"fmt"

	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// validSubmit holds a SubmitRequest's fields resolved to their effective,
// spec-default-applied values, once validation has passed.
type validSubmit struct {
	priority    taskstore.Priority
	maxTokens   int
	temperature float64
	model       string
}

// Spec §3 parameter defaults, applied when a field is omitted entirely.
const (
	defaultMaxTokens    = 100
	defaultTemperature  = 0.7
	defaultModel        = "mock-model"
	maxTokensUpperBound = 4096
)

// validateSubmit checks req field-by-field, rather than through
// wscutils.WscValidate's tag-to-msgid map: max_tokens and temperature would
// otherwise share generic tags like "min"/"max" and collide on message
// attribution. promptMaxLength comes from the scheduler's validation config.
func validateSubmit(req SubmitRequest, promptMaxLength int) (validSubmit, []wscutils.ErrorMessage) {
	var errs []wscutils.ErrorMessage
	out := validSubmit{
		priority:    taskstore.PriorityNormal,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		model:       defaultModel,
	}

	if req.Prompt == "" {
		errs = append(errs, wscutils.BuildErrorMessage(wscutils.MsgIDEmptyPrompt, wscutils.ErrcodeEmptyPrompt, "prompt"))
	} else if len(req.Prompt) > promptMaxLength {
		errs = append(errs, wscutils.BuildErrorMessage(
			wscutils.MsgIDPromptTooLong, wscutils.ErrcodePromptTooLong, "prompt",
			fmt.Sprintf("%d", len(req.Prompt)), fmt.Sprintf("%d", promptMaxLength),
		))
	}

	if p, ok := req.Priority.Get(); ok {
		switch taskstore.Priority(p) {
		case taskstore.PriorityHigh, taskstore.PriorityNormal, taskstore.PriorityLow:
			out.priority = taskstore.Priority(p)
		default:
			errs = append(errs, wscutils.BuildErrorMessage(wscutils.MsgIDInvalidPriority, wscutils.ErrcodeInvalidPriority, "priority", p))
		}
	}

	if mt, ok := req.MaxTokens.Get(); ok {
		if mt < 1 || mt > maxTokensUpperBound {
			errs = append(errs, wscutils.BuildErrorMessage(wscutils.MsgIDInvalidMaxTokens, wscutils.ErrcodeInvalidMaxTokens, "max_tokens", fmt.Sprintf("%d", mt)))
		} else {
			out.maxTokens = mt
		}
	}

	if temp, ok := req.Temperature.Get(); ok {
		if temp < 0 || temp > 2 {
			errs = append(errs, wscutils.BuildErrorMessage(wscutils.MsgIDInvalidTemperature, wscutils.ErrcodeInvalidTemperature, "temperature", fmt.Sprintf("%v", temp)))
		} else {
			out.temperature = temp
		}
	}

	if m, ok := req.Model.Get(); ok {
		out.model = m
	}

	return out, errs
}

// validateBatch runs validateSubmit over every item in reqs, enforcing the
// all-or-nothing rule from spec §4.8: field errors are tagged with their
// item's index so a caller can tell which entries failed.
func validateBatch(reqs []SubmitRequest, promptMaxLength, maxItems int) ([]validSubmit, []wscutils.ErrorMessage) {
	var errs []wscutils.ErrorMessage

	if len(reqs) == 0 {
		return nil, []wscutils.ErrorMessage{
			wscutils.BuildErrorMessage(wscutils.MsgIDBatchEmpty, wscutils.ErrcodeBatchEmpty, ""),
		}
	}
	if len(reqs) > maxItems {
		return nil, []wscutils.ErrorMessage{
			wscutils.BuildErrorMessage(wscutils.MsgIDBatchTooLarge, wscutils.ErrcodeBatchTooLarge, "",
				fmt.Sprintf("%d", len(reqs)), fmt.Sprintf("%d", maxItems)),
		}
	}

	valid := make([]validSubmit, len(reqs))
	for i, req := range reqs {
		v, itemErrs := validateSubmit(req, promptMaxLength)
		valid[i] = v
		for _, e := range itemErrs {
			e.Field = fmt.Sprintf("%d.%s", i, e.Field)
			errs = append(errs, e)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return valid, nil
}
