package resendtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// CreateAPIKeyArgs are the arguments of create-api-key.
type CreateAPIKeyArgs struct {
	Name       string `json:"name" jsonschema_description:"Key name."`
	Permission string `json:"permission,omitempty" jsonschema:"enum=full_access,enum=sending_access" jsonschema_description:"Access level. Defaults to full_access."`
	DomainID   string `json:"domain_id,omitempty" jsonschema_description:"Restrict a sending_access key to one domain."`
}

// APIKeyIDArgs addresses an API key.
type APIKeyIDArgs struct {
	ID string `json:"id" jsonschema_description:"API key id."`
}

// ListAPIKeysArgs are the arguments of list-api-keys.
type ListAPIKeysArgs struct {
	PageArgs
}

// CreateWebhookArgs are the arguments of create-webhook.
type CreateWebhookArgs struct {
	Endpoint string   `json:"endpoint" jsonschema_description:"HTTPS URL that receives events."`
	Events   []string `json:"events" jsonschema_description:"Event types to deliver such as email.delivered or contact.created."`
}

// WebhookIDArgs addresses a webhook.
type WebhookIDArgs struct {
	ID string `json:"id" jsonschema_description:"Webhook id."`
}

// ListWebhooksArgs are the arguments of list-webhooks.
type ListWebhooksArgs struct {
	PageArgs
}

// UpdateWebhookArgs are the arguments of update-webhook.
type UpdateWebhookArgs struct {
	ID       string   `json:"id" jsonschema_description:"Webhook id."`
	Endpoint string   `json:"endpoint,omitempty"`
	Events   []string `json:"events,omitempty"`
	Status   string   `json:"status,omitempty" jsonschema:"enum=enabled,enum=disabled"`
}

func (t *toolset) apiKeyTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-api-key", t.createAPIKey,
			mcpservice.WithToolTitle("Create API key"),
			mcpservice.WithToolDescription("Create an API key. The token is shown only once."),
		),
		mcpservice.NewTool("list-api-keys", t.listAPIKeys,
			mcpservice.WithToolTitle("List API keys"),
			mcpservice.WithToolDescription("List API keys. Tokens are never included."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("remove-api-key", t.removeAPIKey,
			mcpservice.WithToolTitle("Remove API key"),
			mcpservice.WithToolDescription("Revoke an API key. Clients using it stop working immediately."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createAPIKey(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateAPIKeyArgs]) error {
	a := r.Args()
	if a.DomainID != "" && a.Permission != "sending_access" {
		return invalid(w, "domain_id requires permission sending_access.")
	}
	k, err := t.client.APIKeys.Create(ctx, &resend.CreateAPIKeyRequest{
		Name:       a.Name,
		Permission: a.Permission,
		DomainID:   a.DomainID,
	})
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Created API key %s. Key ID: %s\nToken: %s\nStore the token now; it cannot be retrieved again.", a.Name, k.ID, k.Token))
}

func (t *toolset) listAPIKeys(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListAPIKeysArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.APIKeys.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "API keys", page,
		func(k resend.APIKey) string {
			return fmt.Sprintf("%s: %s (created %s)", k.ID, k.Name, ago(k.CreatedAt))
		},
		func(k resend.APIKey) string { return k.ID },
	)
}

func (t *toolset) removeAPIKey(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[APIKeyIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.APIKeys.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "API key", id, d)
}

func (t *toolset) webhookTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-webhook", t.createWebhook,
			mcpservice.WithToolTitle("Create webhook"),
			mcpservice.WithToolDescription("Register an endpoint for event notifications. The signing secret is shown once."),
		),
		mcpservice.NewTool("get-webhook", t.getWebhook,
			mcpservice.WithToolTitle("Get webhook"),
			mcpservice.WithToolDescription("Retrieve a webhook by id."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-webhooks", t.listWebhooks,
			mcpservice.WithToolTitle("List webhooks"),
			mcpservice.WithToolDescription("List webhook endpoints."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-webhook", t.updateWebhook,
			mcpservice.WithToolTitle("Update webhook"),
			mcpservice.WithToolDescription("Change a webhook's endpoint, events or status."),
		),
		mcpservice.NewTool("remove-webhook", t.removeWebhook,
			mcpservice.WithToolTitle("Remove webhook"),
			mcpservice.WithToolDescription("Remove a webhook endpoint."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func (t *toolset) createWebhook(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateWebhookArgs]) error {
	a := r.Args()
	if !strings.HasPrefix(a.Endpoint, "https://") {
		return invalid(w, "endpoint must be an https URL.")
	}
	if len(a.Events) == 0 {
		return invalid(w, "At least one event type is required.")
	}
	wh, err := t.client.Webhooks.Create(ctx, &resend.CreateWebhookRequest{Endpoint: a.Endpoint, Events: a.Events})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Created webhook for %s. Webhook ID: %s", a.Endpoint, wh.ID)
	if wh.SigningSecret != "" {
		text += "\nSigning secret: " + wh.SigningSecret
	}
	return w.AppendText(text)
}

func (t *toolset) getWebhook(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[WebhookIDArgs]) error {
	wh, err := t.client.Webhooks.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Webhook %s\nEndpoint: %s\nEvents: %s\nStatus: %s\nCreated: %s",
		wh.ID, wh.Endpoint, joinOr(wh.Events, "(none)"), wh.Status, ago(wh.CreatedAt)))
}

func (t *toolset) listWebhooks(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListWebhooksArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Webhooks.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "webhooks", page,
		func(wh resend.Webhook) string {
			return fmt.Sprintf("%s: %s [%s] %d events", wh.ID, wh.Endpoint, wh.Status, len(wh.Events))
		},
		func(wh resend.Webhook) string { return wh.ID },
	)
}

func (t *toolset) updateWebhook(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateWebhookArgs]) error {
	a := r.Args()
	if a.Endpoint == "" && len(a.Events) == 0 && a.Status == "" {
		return invalid(w, "Nothing to update: pass endpoint, events or status.")
	}
	if a.Endpoint != "" && !strings.HasPrefix(a.Endpoint, "https://") {
		return invalid(w, "endpoint must be an https URL.")
	}
	if _, err := t.client.Webhooks.Update(ctx, a.ID, &resend.UpdateWebhookRequest{
		Endpoint: a.Endpoint,
		Events:   a.Events,
		Status:   a.Status,
	}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated webhook %s.", a.ID))
}

func (t *toolset) removeWebhook(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[WebhookIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Webhooks.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "webhook", id, d)
}
