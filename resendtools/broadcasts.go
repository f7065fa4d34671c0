package resendtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// CreateBroadcastArgs are the arguments of create-broadcast.
type CreateBroadcastArgs struct {
	SegmentID   string   `json:"segment_id" jsonschema_description:"Id of the segment that receives the broadcast."`
	Subject     string   `json:"subject"`
	From        string   `json:"from,omitempty" jsonschema_description:"Sender address. Defaults to the configured sender when omitted."`
	ReplyTo     []string `json:"reply_to,omitempty" jsonschema_description:"Reply-to addresses. Defaults to the configured reply-to list."`
	HTML        string   `json:"html,omitempty" jsonschema_description:"HTML body. May reference contact properties such as {{{FIRST_NAME|there}}}."`
	Text        string   `json:"text,omitempty" jsonschema_description:"Plain text body."`
	Name        string   `json:"name,omitempty" jsonschema_description:"Internal name for the broadcast."`
	PreviewText string   `json:"preview_text,omitempty" jsonschema_description:"Preview text shown by mail clients."`
	TopicID     string   `json:"topic_id,omitempty" jsonschema_description:"Topic that scopes who receives the broadcast."`
}

// BroadcastIDArgs addresses a broadcast.
type BroadcastIDArgs struct {
	ID string `json:"id" jsonschema_description:"Broadcast id."`
}

// ListBroadcastsArgs are the arguments of list-broadcasts.
type ListBroadcastsArgs struct {
	PageArgs
}

// UpdateBroadcastArgs are the arguments of update-broadcast.
type UpdateBroadcastArgs struct {
	ID          string   `json:"id" jsonschema_description:"Id of a draft broadcast."`
	SegmentID   string   `json:"segment_id,omitempty"`
	From        string   `json:"from,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	ReplyTo     []string `json:"reply_to,omitempty"`
	HTML        string   `json:"html,omitempty"`
	Text        string   `json:"text,omitempty"`
	Name        string   `json:"name,omitempty"`
	PreviewText string   `json:"preview_text,omitempty"`
}

// SendBroadcastArgs are the arguments of send-broadcast.
type SendBroadcastArgs struct {
	ID          string `json:"id" jsonschema_description:"Broadcast id."`
	ScheduledAt string `json:"scheduled_at,omitempty" jsonschema_description:"When to send. ISO 8601 timestamp or natural language. Sends immediately when omitted."`
}

func (t *toolset) broadcastTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-broadcast", t.createBroadcast,
			mcpservice.WithToolTitle("Create broadcast"),
			mcpservice.WithToolDescription("Create a draft broadcast for a segment. Use send-broadcast to deliver it."),
		),
		mcpservice.NewTool("get-broadcast", t.getBroadcast,
			mcpservice.WithToolTitle("Get broadcast"),
			mcpservice.WithToolDescription("Retrieve a broadcast by id."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-broadcasts", t.listBroadcasts,
			mcpservice.WithToolTitle("List broadcasts"),
			mcpservice.WithToolDescription("List broadcasts with their status."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-broadcast", t.updateBroadcast,
			mcpservice.WithToolTitle("Update broadcast"),
			mcpservice.WithToolDescription("Edit a draft broadcast."),
		),
		mcpservice.NewTool("send-broadcast", t.sendBroadcast,
			mcpservice.WithToolTitle("Send broadcast"),
			mcpservice.WithToolDescription("Send a draft broadcast now or schedule it."),
		),
		mcpservice.NewTool("remove-broadcast", t.removeBroadcast,
			mcpservice.WithToolTitle("Remove broadcast"),
			mcpservice.WithToolDescription("Remove a draft broadcast or cancel a scheduled one."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createBroadcast(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateBroadcastArgs]) error {
	a := r.Args()
	from := t.sender(a.From)
	if from == "" {
		return invalid(w, "No sender address: pass \"from\" or configure a default sender.")
	}
	if a.Text == "" && a.HTML == "" {
		return invalid(w, "Provide a text or html body.")
	}
	res, err := t.client.Broadcasts.Create(ctx, &resend.CreateBroadcastRequest{
		SegmentID:   a.SegmentID,
		From:        from,
		Subject:     a.Subject,
		ReplyTo:     t.replyTo(a.ReplyTo),
		HTML:        a.HTML,
		Text:        a.Text,
		Name:        a.Name,
		PreviewText: a.PreviewText,
		TopicID:     a.TopicID,
	})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created draft broadcast. Broadcast ID: %s", res.ID))
}

func (t *toolset) getBroadcast(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[BroadcastIDArgs]) error {
	bc, err := t.client.Broadcasts.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Broadcast %s\n", bc.ID)
	if bc.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", bc.Name)
	}
	fmt.Fprintf(&b, "Status: %s\n", bc.Status)
	fmt.Fprintf(&b, "Segment: %s\n", bc.SegmentID)
	fmt.Fprintf(&b, "From: %s\n", bc.From)
	fmt.Fprintf(&b, "Subject: %s\n", bc.Subject)
	if len(bc.ReplyTo) > 0 {
		fmt.Fprintf(&b, "Reply-To: %s\n", strings.Join(bc.ReplyTo, ", "))
	}
	if bc.ScheduledAt != "" {
		fmt.Fprintf(&b, "Scheduled at: %s\n", bc.ScheduledAt)
	}
	if bc.SentAt != "" {
		fmt.Fprintf(&b, "Sent: %s\n", ago(resend.Timestamp(bc.SentAt)))
	}
	fmt.Fprintf(&b, "Created: %s", ago(bc.CreatedAt))
	return w.AppendText(b.String())
}

func (t *toolset) listBroadcasts(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListBroadcastsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Broadcasts.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "broadcasts", page,
		func(bc resend.Broadcast) string {
			name := bc.Name
			if name == "" {
				name = "(unnamed)"
			}
			return fmt.Sprintf("%s: %s [%s] created %s", bc.ID, name, bc.Status, ago(bc.CreatedAt))
		},
		func(bc resend.Broadcast) string { return bc.ID },
	)
}

func (t *toolset) updateBroadcast(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateBroadcastArgs]) error {
	a := r.Args()
	req := &resend.UpdateBroadcastRequest{
		SegmentID:   a.SegmentID,
		From:        a.From,
		Subject:     a.Subject,
		ReplyTo:     a.ReplyTo,
		HTML:        a.HTML,
		Text:        a.Text,
		Name:        a.Name,
		PreviewText: a.PreviewText,
	}
	if a.SegmentID == "" && a.From == "" && a.Subject == "" && len(a.ReplyTo) == 0 &&
		a.HTML == "" && a.Text == "" && a.Name == "" && a.PreviewText == "" {
		return invalid(w, "Nothing to update: pass at least one field.")
	}
	if _, err := t.client.Broadcasts.Update(ctx, a.ID, req); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated broadcast %s.", a.ID))
}

func (t *toolset) sendBroadcast(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[SendBroadcastArgs]) error {
	a := r.Args()
	if _, err := t.client.Broadcasts.Send(ctx, a.ID, &resend.SendBroadcastRequest{ScheduledAt: a.ScheduledAt}); err != nil {
		return err
	}
	if a.ScheduledAt != "" {
		return w.AppendText(fmt.Sprintf("Broadcast %s scheduled for %s.", a.ID, a.ScheduledAt))
	}
	return w.AppendText(fmt.Sprintf("Broadcast %s is sending.", a.ID))
}

func (t *toolset) removeBroadcast(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[BroadcastIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Broadcasts.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "broadcast", id, d)
}
