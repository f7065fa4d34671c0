package resendtools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// CreateContactArgs are the arguments of create-contact.
type CreateContactArgs struct {
	Email        string         `json:"email" jsonschema_description:"Contact email address."`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	Unsubscribed *bool          `json:"unsubscribed,omitempty" jsonschema_description:"Whether the contact is unsubscribed from all broadcasts."`
	Properties   map[string]any `json:"properties,omitempty" jsonschema_description:"Values for custom contact properties keyed by property key."`
	Segments     []string       `json:"segments,omitempty" jsonschema_description:"Ids of segments to add the contact to."`
}

// ContactIDArgs addresses a contact by id or email address.
type ContactIDArgs struct {
	ID string `json:"id" jsonschema_description:"Contact id or email address."`
}

// ListContactsArgs are the arguments of list-contacts.
type ListContactsArgs struct {
	PageArgs
}

// UpdateContactArgs are the arguments of update-contact.
type UpdateContactArgs struct {
	ID           string         `json:"id" jsonschema_description:"Contact id or email address."`
	FirstName    *string        `json:"first_name,omitempty"`
	LastName     *string        `json:"last_name,omitempty"`
	Unsubscribed *bool          `json:"unsubscribed,omitempty"`
	Properties   map[string]any `json:"properties,omitempty" jsonschema_description:"Property values to set. Other properties are left unchanged."`
}

func (t *toolset) contactTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-contact", t.createContact,
			mcpservice.WithToolTitle("Create contact"),
			mcpservice.WithToolDescription("Add a contact to the contact book, optionally placing it in segments."),
		),
		mcpservice.NewTool("get-contact", t.getContact,
			mcpservice.WithToolTitle("Get contact"),
			mcpservice.WithToolDescription("Retrieve a contact by id or email address."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-contacts", t.listContacts,
			mcpservice.WithToolTitle("List contacts"),
			mcpservice.WithToolDescription("List contacts in the contact book."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-contact", t.updateContact,
			mcpservice.WithToolTitle("Update contact"),
			mcpservice.WithToolDescription("Update a contact's name, subscription status or property values."),
		),
		mcpservice.NewTool("remove-contact", t.removeContact,
			mcpservice.WithToolTitle("Remove contact"),
			mcpservice.WithToolDescription("Permanently remove a contact by id or email address."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createContact(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateContactArgs]) error {
	a := r.Args()
	res, err := t.client.Contacts.Create(ctx, &resend.CreateContactRequest{
		Email:        a.Email,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Unsubscribed: a.Unsubscribed,
		Properties:   a.Properties,
		Segments:     a.Segments,
	})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created contact %s. Contact ID: %s", a.Email, res.ID))
}

func contactName(c resend.Contact) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return fmt.Sprintf("%s <%s>", name, c.Email)
}

func (t *toolset) getContact(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ContactIDArgs]) error {
	c, err := t.client.Contacts.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Contact %s\n", c.ID)
	fmt.Fprintf(&b, "Name: %s\n", contactName(*c))
	fmt.Fprintf(&b, "Unsubscribed: %t\n", c.Unsubscribed)
	if len(c.Properties) > 0 {
		keys := make([]string, 0, len(c.Properties))
		for k := range c.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Properties:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, c.Properties[k])
		}
	}
	fmt.Fprintf(&b, "Created: %s", ago(c.CreatedAt))
	return w.AppendText(b.String())
}

func (t *toolset) listContacts(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListContactsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Contacts.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "contacts", page,
		func(c resend.Contact) string {
			state := "subscribed"
			if c.Unsubscribed {
				state = "unsubscribed"
			}
			return fmt.Sprintf("%s: %s (%s, added %s)", c.ID, contactName(c), state, ago(c.CreatedAt))
		},
		func(c resend.Contact) string { return c.ID },
	)
}

func (t *toolset) updateContact(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateContactArgs]) error {
	a := r.Args()
	if a.FirstName == nil && a.LastName == nil && a.Unsubscribed == nil && len(a.Properties) == 0 {
		return invalid(w, "Nothing to update: pass at least one field.")
	}
	if _, err := t.client.Contacts.Update(ctx, a.ID, &resend.UpdateContactRequest{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Unsubscribed: a.Unsubscribed,
		Properties:   a.Properties,
	}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated contact %s.", a.ID))
}

func (t *toolset) removeContact(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ContactIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Contacts.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "contact", id, d)
}
