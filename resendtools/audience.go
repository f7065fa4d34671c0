package resendtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// CreateSegmentArgs are the arguments of create-segment.
type CreateSegmentArgs struct {
	Name string `json:"name" jsonschema_description:"Segment name."`
}

// SegmentIDArgs addresses a segment.
type SegmentIDArgs struct {
	ID string `json:"id" jsonschema_description:"Segment id."`
}

// ListSegmentsArgs are the arguments of list-segments.
type ListSegmentsArgs struct {
	PageArgs
}

// CreateTopicArgs are the arguments of create-topic.
type CreateTopicArgs struct {
	Name                string `json:"name" jsonschema_description:"Topic name shown to contacts."`
	DefaultSubscription string `json:"default_subscription" jsonschema:"enum=opt_in,enum=opt_out" jsonschema_description:"Subscription state of contacts that never chose."`
	Description         string `json:"description,omitempty"`
}

// TopicIDArgs addresses a topic.
type TopicIDArgs struct {
	ID string `json:"id" jsonschema_description:"Topic id."`
}

// ListTopicsArgs are the arguments of list-topics.
type ListTopicsArgs struct {
	PageArgs
}

// UpdateTopicArgs are the arguments of update-topic.
type UpdateTopicArgs struct {
	ID          string `json:"id" jsonschema_description:"Topic id."`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateContactPropertyArgs are the arguments of create-contact-property.
type CreateContactPropertyArgs struct {
	Key           string `json:"key" jsonschema_description:"Property key used in templates and contact properties."`
	Type          string `json:"type" jsonschema:"enum=string,enum=number" jsonschema_description:"Value type."`
	FallbackValue any    `json:"fallback_value,omitempty" jsonschema_description:"Value used when a contact has none. Must match type."`
}

// ContactPropertyIDArgs addresses a contact property.
type ContactPropertyIDArgs struct {
	ID string `json:"id" jsonschema_description:"Contact property id."`
}

// ListContactPropertiesArgs are the arguments of list-contact-properties.
type ListContactPropertiesArgs struct {
	PageArgs
}

// UpdateContactPropertyArgs are the arguments of update-contact-property.
type UpdateContactPropertyArgs struct {
	ID            string `json:"id" jsonschema_description:"Contact property id."`
	FallbackValue any    `json:"fallback_value" jsonschema_description:"New fallback value. Must match the property type."`
}

func (t *toolset) segmentTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-segment", t.createSegment,
			mcpservice.WithToolTitle("Create segment"),
			mcpservice.WithToolDescription("Create a segment that groups contacts for broadcasts."),
		),
		mcpservice.NewTool("get-segment", t.getSegment,
			mcpservice.WithToolTitle("Get segment"),
			mcpservice.WithToolDescription("Retrieve a segment by id."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-segments", t.listSegments,
			mcpservice.WithToolTitle("List segments"),
			mcpservice.WithToolDescription("List segments."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("remove-segment", t.removeSegment,
			mcpservice.WithToolTitle("Remove segment"),
			mcpservice.WithToolDescription("Remove a segment. Its contacts are kept."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createSegment(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateSegmentArgs]) error {
	s, err := t.client.Segments.Create(ctx, &resend.CreateSegmentRequest{Name: r.Args().Name})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created segment %s. Segment ID: %s", s.Name, s.ID))
}

func (t *toolset) getSegment(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[SegmentIDArgs]) error {
	s, err := t.client.Segments.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Segment %s\nName: %s\nCreated: %s", s.ID, s.Name, ago(s.CreatedAt)))
}

func (t *toolset) listSegments(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListSegmentsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Segments.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "segments", page,
		func(s resend.Segment) string {
			return fmt.Sprintf("%s: %s (created %s)", s.ID, s.Name, ago(s.CreatedAt))
		},
		func(s resend.Segment) string { return s.ID },
	)
}

func (t *toolset) removeSegment(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[SegmentIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Segments.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "segment", id, d)
}

func (t *toolset) topicTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-topic", t.createTopic,
			mcpservice.WithToolTitle("Create topic"),
			mcpservice.WithToolDescription("Create a subscription topic contacts can opt in to or out of."),
		),
		mcpservice.NewTool("get-topic", t.getTopic,
			mcpservice.WithToolTitle("Get topic"),
			mcpservice.WithToolDescription("Retrieve a topic by id."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-topics", t.listTopics,
			mcpservice.WithToolTitle("List topics"),
			mcpservice.WithToolDescription("List subscription topics."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-topic", t.updateTopic,
			mcpservice.WithToolTitle("Update topic"),
			mcpservice.WithToolDescription("Rename a topic or change its description."),
		),
		mcpservice.NewTool("remove-topic", t.removeTopic,
			mcpservice.WithToolTitle("Remove topic"),
			mcpservice.WithToolDescription("Remove a subscription topic."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createTopic(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateTopicArgs]) error {
	a := r.Args()
	if a.DefaultSubscription != "opt_in" && a.DefaultSubscription != "opt_out" {
		return invalid(w, "default_subscription must be opt_in or opt_out, got %q.", a.DefaultSubscription)
	}
	res, err := t.client.Topics.Create(ctx, &resend.CreateTopicRequest{
		Name:                a.Name,
		DefaultSubscription: a.DefaultSubscription,
		Description:         a.Description,
	})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created topic %s. Topic ID: %s", a.Name, res.ID))
}

func (t *toolset) getTopic(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[TopicIDArgs]) error {
	tp, err := t.client.Topics.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Topic %s\nName: %s\n", tp.ID, tp.Name)
	if tp.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tp.Description)
	}
	fmt.Fprintf(&b, "Default subscription: %s\nCreated: %s", tp.DefaultSubscription, ago(tp.CreatedAt))
	return w.AppendText(b.String())
}

func (t *toolset) listTopics(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListTopicsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Topics.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "topics", page,
		func(tp resend.Topic) string {
			return fmt.Sprintf("%s: %s (%s)", tp.ID, tp.Name, tp.DefaultSubscription)
		},
		func(tp resend.Topic) string { return tp.ID },
	)
}

func (t *toolset) updateTopic(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateTopicArgs]) error {
	a := r.Args()
	if a.Name == "" && a.Description == "" {
		return invalid(w, "Nothing to update: pass name or description.")
	}
	if _, err := t.client.Topics.Update(ctx, a.ID, &resend.UpdateTopicRequest{Name: a.Name, Description: a.Description}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated topic %s.", a.ID))
}

func (t *toolset) removeTopic(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[TopicIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Topics.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "topic", id, d)
}

func (t *toolset) contactPropertyTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-contact-property", t.createContactProperty,
			mcpservice.WithToolTitle("Create contact property"),
			mcpservice.WithToolDescription("Define a custom contact attribute usable in broadcast templates."),
		),
		mcpservice.NewTool("get-contact-property", t.getContactProperty,
			mcpservice.WithToolTitle("Get contact property"),
			mcpservice.WithToolDescription("Retrieve a contact property by id."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-contact-properties", t.listContactProperties,
			mcpservice.WithToolTitle("List contact properties"),
			mcpservice.WithToolDescription("List custom contact properties."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-contact-property", t.updateContactProperty,
			mcpservice.WithToolTitle("Update contact property"),
			mcpservice.WithToolDescription("Change the fallback value of a contact property. Key and type cannot change."),
		),
		mcpservice.NewTool("remove-contact-property", t.removeContactProperty,
			mcpservice.WithToolTitle("Remove contact property"),
			mcpservice.WithToolDescription("Remove a contact property and its values on every contact."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func checkPropertyValue(typ string, v any) error {
	if v == nil {
		return nil
	}
	switch typ {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("fallback_value must be a string for a string property")
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("fallback_value must be a number for a number property")
		}
	default:
		return fmt.Errorf("type must be string or number, got %q", typ)
	}
	return nil
}

func (t *toolset) createContactProperty(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateContactPropertyArgs]) error {
	a := r.Args()
	if err := checkPropertyValue(a.Type, a.FallbackValue); err != nil {
		return invalid(w, "%s.", err.Error())
	}
	res, err := t.client.ContactProperties.Create(ctx, &resend.CreateContactPropertyRequest{
		Key:           a.Key,
		Type:          a.Type,
		FallbackValue: a.FallbackValue,
	})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created contact property %s. Property ID: %s", a.Key, res.ID))
}

func (t *toolset) getContactProperty(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ContactPropertyIDArgs]) error {
	p, err := t.client.ContactProperties.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Contact property %s\nKey: %s\nType: %s\n", p.ID, p.Key, p.Type)
	if p.FallbackValue != nil {
		fmt.Fprintf(&b, "Fallback: %v\n", p.FallbackValue)
	}
	fmt.Fprintf(&b, "Created: %s", ago(p.CreatedAt))
	return w.AppendText(b.String())
}

func (t *toolset) listContactProperties(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListContactPropertiesArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.ContactProperties.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "contact properties", page,
		func(p resend.ContactProperty) string {
			if p.FallbackValue != nil {
				return fmt.Sprintf("%s: %s (%s, fallback %v)", p.ID, p.Key, p.Type, p.FallbackValue)
			}
			return fmt.Sprintf("%s: %s (%s)", p.ID, p.Key, p.Type)
		},
		func(p resend.ContactProperty) string { return p.ID },
	)
}

func (t *toolset) updateContactProperty(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateContactPropertyArgs]) error {
	a := r.Args()
	if _, err := t.client.ContactProperties.Update(ctx, a.ID, &resend.UpdateContactPropertyRequest{FallbackValue: a.FallbackValue}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated contact property %s.", a.ID))
}

func (t *toolset) removeContactProperty(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ContactPropertyIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.ContactProperties.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "contact property", id, d)
}
