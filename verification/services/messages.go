package services

import (
	"fmt"
	"strings"

	"throttle_platform/verification/chat"
	"throttle_platform/verification/schema"
)

// Control ids carried by the buttons this service attaches to its messages.
// The gateway echoes them back verbatim in interaction events.
const (
	ControlApprove   = "review:approve"
	ControlDeny      = "review:deny"
	ControlDenyGuide = "review:deny_guide"
	ControlBan       = "review:ban"

	ControlOverrideApprove = "review:override_approve"
	ControlOverrideDeny    = "review:override_deny"
)

func reviewMessage(app *schema.VerificationApplication) chat.Message {
	return chat.Message{
		Title:    "Verification Application",
		Body:     fmt.Sprintf("<@%v> submitted **%v** for verification.", app.UserId, app.VehicleName),
		ImageUrl: app.ImageUrl,
		Fields: []chat.Field{
			{Name: "Vehicle", Value: app.VehicleName},
			{Name: "Submitter", Value: app.UserId},
		},
		Buttons: []chat.Button{
			{CustomId: ControlApprove, Label: "Approve", Style: chat.ButtonStyleSuccess},
			{CustomId: ControlDeny, Label: "Deny", Style: chat.ButtonStyleDanger},
			{CustomId: ControlDenyGuide, Label: "Deny - Read Guide", Style: chat.ButtonStyleDanger},
			{CustomId: ControlBan, Label: "Ban", Style: chat.ButtonStyleDanger},
		},
	}
}

func autoDecisionMessage(app *schema.VerificationApplication, issues []string) chat.Message {
	var msg chat.Message
	msg.ImageUrl = app.ImageUrl
	msg.Fields = []chat.Field{
		{Name: "Vehicle", Value: app.VehicleName},
		{Name: "Submitter", Value: app.UserId},
	}

	if app.Status == schema.StatusAutoApproved {
		msg.Title = "Auto-Approved Application"
		msg.Body = fmt.Sprintf("**%v** from <@%v> was approved automatically.", app.VehicleName, app.UserId)
		msg.Buttons = []chat.Button{
			{CustomId: ControlOverrideDeny, Label: "Override - Deny", Style: chat.ButtonStyleDanger},
		}
	} else {
		msg.Title = "Auto-Denied Application"
		msg.Body = fmt.Sprintf("**%v** from <@%v> was denied automatically.", app.VehicleName, app.UserId)
		if len(issues) > 0 {
			msg.Fields = append(msg.Fields, chat.Field{Name: "Issues", Value: strings.Join(issues, "\n")})
		}
		msg.Buttons = []chat.Button{
			{CustomId: ControlOverrideApprove, Label: "Override - Approve", Style: chat.ButtonStyleSuccess},
		}
	}

	return msg
}

func decidedMessage(app *schema.VerificationApplication) chat.Message {
	decision := ""
	if app.Decision != nil {
		decision = *app.Decision
	}
	actor := ""
	if app.DecidedBy != nil {
		actor = *app.DecidedBy
	}

	body := fmt.Sprintf("**%v** from <@%v>: %v", app.VehicleName, app.UserId, decisionCopy(decision))
	if actor == schema.SystemActor {
		body += "\nClosed automatically: the submitter left the server."
	}

	return chat.Message{
		Title:    "Verification Application",
		Body:     body,
		ImageUrl: app.ImageUrl,
		Fields: []chat.Field{
			{Name: "Decision", Value: decision},
			{Name: "Decided By", Value: actor},
		},
	}
}

func submitterNotice(app *schema.VerificationApplication, decision string) chat.Message {
	return chat.Message{
		Title: "Verification Update",
		Body:  fmt.Sprintf("Your application for **%v**: %v", app.VehicleName, decisionCopy(decision)),
	}
}

func decisionCopy(decision string) string {
	switch decision {
	case schema.DecisionApproved, schema.DecisionOverriddenApproved:
		return "approved. Your vehicle has been added to the catalog."
	case schema.DecisionDenied:
		return "denied."
	case schema.DecisionDeniedReadGuide:
		return "denied. Please read the verification guide and resubmit."
	case schema.DecisionBanned:
		return "denied. You have been banned from vehicle verification."
	case schema.DecisionOverriddenDenied:
		return "denied on review by staff. The automatic approval was reversed."
	default:
		return decision
	}
}

func auditMessage(app *schema.VerificationApplication, decision, actor string) chat.Message {
	return chat.Message{
		Title: "Verification Log",
		Body:  fmt.Sprintf("**%v** (submitter <@%v>): %v by %v", app.VehicleName, app.UserId, decision, actor),
	}
}
