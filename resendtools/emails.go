package resendtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

const maxBatchSize = 100

// TagArgs is a name/value tag attached to an email.
type TagArgs struct {
	Name  string `json:"name" jsonschema_description:"Tag name. ASCII letters, numbers, underscores or dashes."`
	Value string `json:"value" jsonschema_description:"Tag value. ASCII letters, numbers, underscores or dashes."`
}

// AttachmentArgs attaches a file by URL or base64 content.
type AttachmentArgs struct {
	Filename    string `json:"filename,omitempty" jsonschema_description:"Name shown to the recipient."`
	Content     string `json:"content,omitempty" jsonschema_description:"Base64 encoded file content."`
	Path        string `json:"path,omitempty" jsonschema_description:"URL the file is fetched from."`
	ContentType string `json:"content_type,omitempty" jsonschema_description:"MIME type. Derived from the filename when omitted."`
}

// SendEmailArgs are the arguments of send-email.
type SendEmailArgs struct {
	To             []string          `json:"to" jsonschema_description:"Recipient addresses (max 50)."`
	Subject        string            `json:"subject" jsonschema_description:"Email subject line."`
	Text           string            `json:"text,omitempty" jsonschema_description:"Plain text body."`
	HTML           string            `json:"html,omitempty" jsonschema_description:"HTML body. When set the plain text body is still sent as a fallback."`
	From           string            `json:"from,omitempty" jsonschema_description:"Sender address. Defaults to the configured sender when omitted."`
	ReplyTo        []string          `json:"reply_to,omitempty" jsonschema_description:"Reply-to addresses. Defaults to the configured reply-to list."`
	Cc             []string          `json:"cc,omitempty" jsonschema_description:"Carbon copy recipients."`
	Bcc            []string          `json:"bcc,omitempty" jsonschema_description:"Blind carbon copy recipients."`
	ScheduledAt    string            `json:"scheduled_at,omitempty" jsonschema_description:"When to send. ISO 8601 timestamp or natural language such as 'in 1 hour'."`
	Headers        map[string]string `json:"headers,omitempty" jsonschema_description:"Custom email headers."`
	Tags           []TagArgs         `json:"tags,omitempty" jsonschema_description:"Tags attached to the email for filtering."`
	Attachments    []AttachmentArgs  `json:"attachments,omitempty" jsonschema_description:"Files attached to the email."`
	IdempotencyKey string            `json:"idempotency_key,omitempty" jsonschema_description:"Key that makes retries of this send safe. Generated when omitted."`
}

// BatchEmailArgs is one email in a send-batch-emails call.
type BatchEmailArgs struct {
	To      []string          `json:"to" jsonschema_description:"Recipient addresses."`
	Subject string            `json:"subject" jsonschema_description:"Email subject line."`
	Text    string            `json:"text,omitempty" jsonschema_description:"Plain text body."`
	HTML    string            `json:"html,omitempty" jsonschema_description:"HTML body."`
	From    string            `json:"from,omitempty" jsonschema_description:"Sender address. Defaults to the configured sender."`
	ReplyTo []string          `json:"reply_to,omitempty" jsonschema_description:"Reply-to addresses. Defaults to the configured reply-to list."`
	Cc      []string          `json:"cc,omitempty"`
	Bcc     []string          `json:"bcc,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []TagArgs         `json:"tags,omitempty"`
}

// SendBatchEmailsArgs are the arguments of send-batch-emails.
type SendBatchEmailsArgs struct {
	Emails         []BatchEmailArgs `json:"emails" jsonschema_description:"Emails to send (max 100)."`
	IdempotencyKey string           `json:"idempotency_key,omitempty" jsonschema_description:"Key that makes retries of this batch safe. Generated when omitted."`
}

// EmailIDArgs addresses a single email.
type EmailIDArgs struct {
	ID string `json:"id" jsonschema_description:"Email id."`
}

// ListEmailsArgs are the arguments of list-emails.
type ListEmailsArgs struct {
	PageArgs
}

// UpdateEmailArgs are the arguments of update-email.
type UpdateEmailArgs struct {
	ID          string `json:"id" jsonschema_description:"Id of a scheduled email."`
	ScheduledAt string `json:"scheduled_at" jsonschema_description:"New send time. ISO 8601 timestamp or natural language."`
}

func tags(in []TagArgs) []resend.Tag {
	if len(in) == 0 {
		return nil
	}
	out := make([]resend.Tag, len(in))
	for i, t := range in {
		out[i] = resend.Tag{Name: t.Name, Value: t.Value}
	}
	return out
}

func attachments(in []AttachmentArgs) ([]resend.Attachment, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]resend.Attachment, len(in))
	for i, a := range in {
		if (a.Content == "") == (a.Path == "") {
			return nil, fmt.Errorf("attachment %d needs exactly one of content or path", i)
		}
		out[i] = resend.Attachment{Filename: a.Filename, Content: a.Content, Path: a.Path, ContentType: a.ContentType}
	}
	return out, nil
}

func (t *toolset) emailTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("send-email", t.sendEmail,
			mcpservice.WithToolTitle("Send email"),
			mcpservice.WithToolDescription("Send an email through Resend, optionally scheduling it for later. "+
				"Provide text or html (or both)."),
		),
		mcpservice.NewTool("send-batch-emails", t.sendBatchEmails,
			mcpservice.WithToolTitle("Send batch emails"),
			mcpservice.WithToolDescription("Send up to 100 emails in a single request."),
		),
		mcpservice.NewTool("get-email", t.getEmail,
			mcpservice.WithToolTitle("Get email"),
			mcpservice.WithToolDescription("Retrieve a sent or scheduled email by id, including its delivery status."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-emails", t.listEmails,
			mcpservice.WithToolTitle("List emails"),
			mcpservice.WithToolDescription("List recently sent emails, newest first."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-email", t.updateEmail,
			mcpservice.WithToolTitle("Reschedule email"),
			mcpservice.WithToolDescription("Change the send time of a scheduled email."),
		),
		mcpservice.NewTool("cancel-email", t.cancelEmail,
			mcpservice.WithToolTitle("Cancel email"),
			mcpservice.WithToolDescription("Cancel a scheduled email before it is sent."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) sendEmail(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[SendEmailArgs]) error {
	a := r.Args()
	from := t.sender(a.From)
	if from == "" {
		return invalid(w, "No sender address: pass \"from\" or configure a default sender.")
	}
	if len(a.To) == 0 {
		return invalid(w, "At least one recipient is required.")
	}
	if a.Text == "" && a.HTML == "" {
		return invalid(w, "Provide a text or html body.")
	}
	atts, err := attachments(a.Attachments)
	if err != nil {
		return invalid(w, "%s", err.Error())
	}

	res, err := t.client.Emails.Send(ctx, &resend.SendEmailRequest{
		From:           from,
		To:             a.To,
		Subject:        a.Subject,
		Text:           a.Text,
		HTML:           a.HTML,
		Cc:             a.Cc,
		Bcc:            a.Bcc,
		ReplyTo:        t.replyTo(a.ReplyTo),
		ScheduledAt:    a.ScheduledAt,
		Headers:        a.Headers,
		Tags:           tags(a.Tags),
		Attachments:    atts,
		IdempotencyKey: a.IdempotencyKey,
	})
	if err != nil {
		return err
	}
	verb := "sent"
	if a.ScheduledAt != "" {
		verb = "scheduled for " + a.ScheduledAt
	}
	return w.AppendText(fmt.Sprintf("Email %s to %s. Email ID: %s", verb, strings.Join(a.To, ", "), res.ID))
}

func (t *toolset) sendBatchEmails(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[SendBatchEmailsArgs]) error {
	a := r.Args()
	switch n := len(a.Emails); {
	case n == 0:
		return invalid(w, "The batch is empty.")
	case n > maxBatchSize:
		return invalid(w, "A batch holds at most %d emails, got %d.", maxBatchSize, n)
	}

	reqs := make([]resend.SendEmailRequest, len(a.Emails))
	for i, e := range a.Emails {
		from := t.sender(e.From)
		if from == "" {
			return invalid(w, "Email %d has no sender address: pass \"from\" or configure a default sender.", i)
		}
		if e.Text == "" && e.HTML == "" {
			return invalid(w, "Email %d needs a text or html body.", i)
		}
		reqs[i] = resend.SendEmailRequest{
			From:    from,
			To:      e.To,
			Subject: e.Subject,
			Text:    e.Text,
			HTML:    e.HTML,
			Cc:      e.Cc,
			Bcc:     e.Bcc,
			ReplyTo: t.replyTo(e.ReplyTo),
			Headers: e.Headers,
			Tags:    tags(e.Tags),
		}
	}

	res, err := t.client.Emails.SendBatch(ctx, reqs, a.IdempotencyKey)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sent %d emails:", len(res.Data))
	for i, c := range res.Data {
		fmt.Fprintf(&b, "\n- #%d: %s", i, c.ID)
	}
	return w.AppendText(b.String())
}

func (t *toolset) getEmail(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EmailIDArgs]) error {
	e, err := t.client.Emails.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Email %s\n", e.ID)
	fmt.Fprintf(&b, "From: %s\n", e.From)
	fmt.Fprintf(&b, "To: %s\n", joinOr(e.To, "(none)"))
	if len(e.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(e.Cc, ", "))
	}
	if len(e.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", strings.Join(e.Bcc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", e.Subject)
	if e.LastEvent != "" {
		fmt.Fprintf(&b, "Status: %s\n", e.LastEvent)
	}
	if e.ScheduledAt != "" {
		fmt.Fprintf(&b, "Scheduled at: %s\n", e.ScheduledAt)
	}
	fmt.Fprintf(&b, "Created: %s", ago(e.CreatedAt))
	if e.Text != "" {
		fmt.Fprintf(&b, "\n\n%s", e.Text)
	}
	return w.AppendText(b.String())
}

func (t *toolset) listEmails(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListEmailsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Emails.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "emails", page,
		func(e resend.Email) string {
			status := e.LastEvent
			if status == "" {
				status = "unknown"
			}
			return fmt.Sprintf("%s: %q to %s (%s, %s)", e.ID, e.Subject, joinOr(e.To, "(none)"), status, ago(e.CreatedAt))
		},
		func(e resend.Email) string { return e.ID },
	)
}

func (t *toolset) updateEmail(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateEmailArgs]) error {
	a := r.Args()
	if _, err := t.client.Emails.Update(ctx, a.ID, &resend.UpdateEmailRequest{ScheduledAt: a.ScheduledAt}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Email %s rescheduled for %s.", a.ID, a.ScheduledAt))
}

func (t *toolset) cancelEmail(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EmailIDArgs]) error {
	id := r.Args().ID
	if _, err := t.client.Emails.Cancel(ctx, id); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Scheduled email %s cancelled.", id))
}
