package eventsvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
)

const digestTemplate = "ledger_activity"

// MailDigest e-mails a summary of each published batch of events to the configured recipients.
type MailDigest struct {
	mailSvc    core.EmailService
	recipients []mail.Address
}

var _ core.EventPublisher = (*MailDigest)(nil) // interface compliance check

func NewMailDigest(conf *core.Config, mailSvc core.EmailService) *MailDigest {
	recipients := make([]mail.Address, 0, len(conf.App.NotifyEmails))
	for _, email := range conf.App.NotifyEmails {
		recipients = append(recipients, mail.Address{Address: email})
	}
	return &MailDigest{mailSvc: mailSvc, recipients: recipients}
}

func (d *MailDigest) Publish(_ context.Context, events ...core.Event) error {
	if len(d.recipients) == 0 || len(events) == 0 {
		return nil
	}

	lines := make([]string, 0, len(events))
	for _, evt := range events {
		lines = append(lines, describe(evt))
	}
	d.mailSvc.SendMessages(&core.EmailMessage{
		To:           d.recipients,
		Subject:      "Fee ledger activity",
		TemplateName: digestTemplate,
		TemplateData: map[string]interface{}{"Lines": lines},
	})
	return nil
}

func describe(evt core.Event) string {
	at := evt.OccurredAt.Format("2006-01-02 15:04 MST")
	switch data := evt.Data.(type) {
	case ledger.Collection:
		return fmt.Sprintf("%s: %s payment of %s on %s fee (%s), now %s",
			at, data.Method, data.AmountPaid.StringFixed(2), data.FeeType, data.ID, data.Status)
	case fee.Structure:
		return fmt.Sprintf("%s: %s fee of %s for %s (%s)", at, data.Type, data.Amount.StringFixed(2), data.AcademicYear, evt.Type)
	case expense.Expense:
		return fmt.Sprintf("%s: %s expense of %s, %s", at, data.Category, data.Amount.StringFixed(2), data.Description)
	case map[string]interface{}:
		switch evt.Type {
		case core.EventFeesGenerated:
			return fmt.Sprintf("%s: %v fee entries generated", at, data["count"])
		case core.EventFeesMarkedOverdue:
			return fmt.Sprintf("%s: %v fee entries marked overdue as of %s", at, data["count"], evt.Key)
		}
	}
	return fmt.Sprintf("%s: %s %s", at, evt.Type, evt.Key)
}
