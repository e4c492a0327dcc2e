package certificates

import (
	"context"

	"aquanexus/marketplace-backend/pkg/pdf"
)

const ContentTypePDF = "application/pdf"

// Renderer turns certificates into printable documents
type Renderer struct {
	generator pdf.Generator
}

// NewRenderer creates a renderer over generator
func NewRenderer(generator pdf.Generator) *Renderer {
	return &Renderer{generator: generator}
}

var defaultRenderer = NewRenderer(pdf.NewGenerator(pdf.DefaultOptions()))

// RenderPDF renders cert with the default layout
func RenderPDF(ctx context.Context, cert Certificate) ([]byte, error) {
	return defaultRenderer.Render(ctx, cert)
}

// Render produces a one page PDF for cert
func (r *Renderer) Render(ctx context.Context, cert Certificate) ([]byte, error) {
	subtitle := cert.ProjectName
	if subtitle == "" {
		subtitle = cert.ProjectID
	}

	doc := pdf.Document{
		Title:    "Certificado de Resiliencia Hídrica",
		Subtitle: subtitle,
		Fields: []pdf.Field{
			{Label: "Certificado", Value: cert.ID},
			{Label: "Propietario", Value: cert.Owner},
			{Label: "Agua conservada (m3/año)", Value: cert.ImpactQuantity.String()},
			{Label: "CO2e evitado (t)", Value: cert.CO2OffsetTons.StringFixed(4)},
			{Label: "Monto pagado", Value: cert.AmountPaid.StringFixed(2)},
			{Label: "Fecha de emisión", Value: cert.IssuedAt.UTC().Format("2006-01-02 15:04 MST")},
		},
		Footer:  "Transacción " + cert.Hash,
		Created: cert.IssuedAt,
	}
	return r.generator.Render(ctx, doc)
}
