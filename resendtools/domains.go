package resendtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/resend-mcp-go/mcpservice"
	"github.com/ggoodman/resend-mcp-go/resend"
)

// CreateDomainArgs are the arguments of create-domain.
type CreateDomainArgs struct {
	Name             string `json:"name" jsonschema_description:"Domain name such as example.com."`
	Region           string `json:"region,omitempty" jsonschema:"enum=us-east-1,enum=eu-west-1,enum=sa-east-1,enum=ap-northeast-1" jsonschema_description:"Region emails are sent from."`
	CustomReturnPath string `json:"custom_return_path,omitempty" jsonschema_description:"Subdomain used for the Return-Path address. Defaults to send."`
}

// DomainIDArgs addresses a domain.
type DomainIDArgs struct {
	ID string `json:"id" jsonschema_description:"Domain id."`
}

// ListDomainsArgs are the arguments of list-domains.
type ListDomainsArgs struct {
	PageArgs
}

// UpdateDomainArgs are the arguments of update-domain.
type UpdateDomainArgs struct {
	ID            string `json:"id" jsonschema_description:"Domain id."`
	ClickTracking *bool  `json:"click_tracking,omitempty" jsonschema_description:"Track link clicks."`
	OpenTracking  *bool  `json:"open_tracking,omitempty" jsonschema_description:"Track email opens."`
	TLS           string `json:"tls,omitempty" jsonschema:"enum=opportunistic,enum=enforced" jsonschema_description:"TLS mode for outgoing mail."`
}

func (t *toolset) domainTools() []mcpservice.ToolDefinition {
	return []mcpservice.ToolDefinition{
		mcpservice.NewTool("create-domain", t.createDomain,
			mcpservice.WithToolTitle("Create domain"),
			mcpservice.WithToolDescription("Register a sending domain and print the DNS records to publish."),
		),
		mcpservice.NewTool("get-domain", t.getDomain,
			mcpservice.WithToolTitle("Get domain"),
			mcpservice.WithToolDescription("Retrieve a domain with its DNS records and verification status."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("list-domains", t.listDomains,
			mcpservice.WithToolTitle("List domains"),
			mcpservice.WithToolDescription("List sending domains."),
			mcpservice.WithToolReadOnly(),
		),
		mcpservice.NewTool("update-domain", t.updateDomain,
			mcpservice.WithToolTitle("Update domain"),
			mcpservice.WithToolDescription("Change tracking or TLS settings of a domain."),
		),
		mcpservice.NewTool("verify-domain", t.verifyDomain,
			mcpservice.WithToolTitle("Verify domain"),
			mcpservice.WithToolDescription("Ask Resend to check the domain's DNS records again."),
		),
		mcpservice.NewTool("remove-domain", t.removeDomain,
			mcpservice.WithToolTitle("Remove domain"),
			mcpservice.WithToolDescription("Remove a sending domain."),
			mcpservice.WithToolDestructive(),
		),
	}
}

func writeDomain(b *strings.Builder, d *resend.Domain) {
	fmt.Fprintf(b, "Domain %s (%s)\n", d.Name, d.ID)
	fmt.Fprintf(b, "Status: %s\n", d.Status)
	if d.Region != "" {
		fmt.Fprintf(b, "Region: %s\n", d.Region)
	}
	fmt.Fprintf(b, "Created: %s", ago(d.CreatedAt))
	if len(d.Records) == 0 {
		return
	}
	b.WriteString("\nDNS records:")
	for _, r := range d.Records {
		fmt.Fprintf(b, "\n- %s %s %s", r.Type, r.Name, r.Value)
		if r.Priority > 0 {
			fmt.Fprintf(b, " (priority %d)", r.Priority)
		}
		if r.Status != "" {
			fmt.Fprintf(b, " [%s]", r.Status)
		}
	}
}

func (t *toolset) createDomain(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[CreateDomainArgs]) error {
	a := r.Args()
	d, err := t.client.Domains.Create(ctx, &resend.CreateDomainRequest{
		Name:             a.Name,
		Region:           a.Region,
		CustomReturnPath: a.CustomReturnPath,
	})
	if err != nil {
		return err
	}
	var b strings.Builder
	writeDomain(&b, d)
	return w.AppendText(b.String())
}

func (t *toolset) getDomain(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[DomainIDArgs]) error {
	d, err := t.client.Domains.Get(ctx, r.Args().ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	writeDomain(&b, d)
	return w.AppendText(b.String())
}

func (t *toolset) listDomains(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[ListDomainsArgs]) error {
	lo, err := r.Args().listOptions()
	if err != nil {
		return invalid(w, "%s", err.Error())
	}
	page, err := t.client.Domains.List(ctx, lo)
	if err != nil {
		return err
	}
	return writeList(w, "domains", page,
		func(d resend.Domain) string {
			return fmt.Sprintf("%s: %s [%s] %s, added %s", d.ID, d.Name, d.Status, d.Region, ago(d.CreatedAt))
		},
		func(d resend.Domain) string { return d.ID },
	)
}

func (t *toolset) updateDomain(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[UpdateDomainArgs]) error {
	a := r.Args()
	if a.ClickTracking == nil && a.OpenTracking == nil && a.TLS == "" {
		return invalid(w, "Nothing to update: pass click_tracking, open_tracking or tls.")
	}
	if _, err := t.client.Domains.Update(ctx, a.ID, &resend.UpdateDomainRequest{
		ClickTracking: a.ClickTracking,
		OpenTracking:  a.OpenTracking,
		TLS:           a.TLS,
	}); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Updated domain %s.", a.ID))
}

func (t *toolset) verifyDomain(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[DomainIDArgs]) error {
	id := r.Args().ID
	if _, err := t.client.Domains.Verify(ctx, id); err != nil {
		return err
	}
	return w.AppendText(fmt.Sprintf("Verification started for domain %s. Use get-domain to check its status.", id))
}

func (t *toolset) removeDomain(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[DomainIDArgs]) error {
	id := r.Args().ID
	d, err := t.client.Domains.Remove(ctx, id)
	if err != nil {
		return err
	}
	return removed(w, "domain", id, d)
}
