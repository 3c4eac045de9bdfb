package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalhelp/api/internal/render/docxtest"
)

func renderText(t *testing.T, tpl []byte, vars map[string]any) string {
	t.Helper()
	out, err := Render(tpl, vars)
	require.NoError(t, err)
	text, err := docxtest.Text(out)
	require.NoError(t, err)
	return text
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("Employer: {employer_name}"),
		docxtest.P("Employee: ", "{employee_", "name}"),
	)
	text := renderText(t, tpl, map[string]any{
		"employer_name": "Acme Pte Ltd",
		"employee_name": "Tan Wei Ming",
	})
	assert.Equal(t, "Employer: Acme Pte Ltd\nEmployee: Tan Wei Ming", text)
}

func TestRenderLeavesTemplateUntouched(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("{a}"))
	before := append([]byte(nil), tpl...)
	_, err := Render(tpl, map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, before, tpl)
}

func TestRenderMissingVariables(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("NRIC: {nric_number}"),
		docxtest.P("{employee_name} {uen_number}"),
	)
	_, err := Render(tpl, map[string]any{"employee_name": "Tan"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingVariable))

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, []string{"nric_number", "uen_number"}, rerr.Missing)
	assert.Contains(t, err.Error(), "nric_number")
}

func TestRenderMissingInsideSection(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("{#items}{name} {price}{/items}"))
	_, err := Render(tpl, map[string]any{"items": []any{map[string]any{"name": "Laptop"}}})
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, []string{"price"}, rerr.Missing)
}

func TestRenderParagraphLoop(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("Items:"),
		docxtest.P("{#items}"),
		docxtest.P("- {name}: {qty}"),
		docxtest.P("{/items}"),
		docxtest.P("End"),
	)
	text := renderText(t, tpl, map[string]any{
		"items": []any{
			map[string]any{"name": "Laptop", "qty": 2},
			map[string]any{"name": "Mouse", "qty": 1.5},
		},
	})
	assert.Equal(t, "Items:\n- Laptop: 2\n- Mouse: 1.5\nEnd", text)
}

func TestRenderLoopClosedInline(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("Items:"),
		docxtest.P("{#items}"),
		docxtest.P("- {name}{/items}"),
		docxtest.P("End"),
	)
	out, err := Render(tpl, map[string]any{
		"items": []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}},
	})
	require.NoError(t, err)
	require.NoError(t, docxtest.WellFormed(out))

	text, err := docxtest.Text(out)
	require.NoError(t, err)
	assert.Equal(t, "Items:\n\n- A\n- B\nEnd", text)
}

func TestRenderNestedParagraphLoops(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("{#parties}"),
		docxtest.P("{name}: {#roles}[{.}]{/roles}"),
		docxtest.P("{/parties}"),
	)
	out, err := Render(tpl, map[string]any{
		"parties": []any{
			map[string]any{"name": "Acme", "roles": []string{"employer"}},
			map[string]any{"name": "Tan", "roles": []string{"employee", "guarantor"}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, docxtest.WellFormed(out))

	text, err := docxtest.Text(out)
	require.NoError(t, err)
	assert.Equal(t, "Acme: [employer]\nTan: [employee][guarantor]", text)
}

func TestRenderUnterminatedBraceStaysInParagraph(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("Clause 3 {see schedule"),
		docxtest.P("Employer: {employer_name}"),
	)
	out, err := Render(tpl, map[string]any{"employer_name": "Acme"})
	require.NoError(t, err)
	require.NoError(t, docxtest.WellFormed(out))

	text, err := docxtest.Text(out)
	require.NoError(t, err)
	assert.Equal(t, "Clause 3 {see schedule\nEmployer: Acme", text)
}

func TestRenderConditionalSections(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("{#has_deposit}Deposit required{/has_deposit}{^has_deposit}No deposit{/has_deposit}"))
	assert.Equal(t, "Deposit required", renderText(t, tpl, map[string]any{"has_deposit": true}))
	assert.Equal(t, "No deposit", renderText(t, tpl, map[string]any{"has_deposit": false}))
	assert.Equal(t, "No deposit", renderText(t, tpl, map[string]any{"has_deposit": []any{}}))
}

func TestRenderDottedNamesAndCurrentItem(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("{party.name}"),
		docxtest.P("{#tags}[{.}]{/tags}"),
		docxtest.P("{#party}{name} of {country}{/party}"),
	)
	text := renderText(t, tpl, map[string]any{
		"party":   map[string]any{"name": "Acme"},
		"country": "Singapore",
		"tags":    []string{"a", "b"},
	})
	assert.Equal(t, "Acme\n[a][b]\nAcme of Singapore", text)
}

func TestRenderLineBreaksAndEscaping(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("Address: {address}"), docxtest.P("Party: {party}"))
	out, err := Render(tpl, map[string]any{
		"address": "1 Raffles Place\r\nSingapore 048616",
		"party":   "Tan & Sons <Pte>",
	})
	require.NoError(t, err)

	xml, err := docxtest.Part(out, "word/document.xml")
	require.NoError(t, err)
	assert.Contains(t, xml, `1 Raffles Place</w:t><w:br/><w:t xml:space="preserve">Singapore 048616`)
	assert.Contains(t, xml, "Tan &amp; Sons &lt;Pte&gt;")
	assert.NotContains(t, xml, `\n`)

	text, err := docxtest.Text(out)
	require.NoError(t, err)
	assert.Equal(t, "Address: 1 Raffles Place\nSingapore 048616\nParty: Tan & Sons <Pte>", text)
}

func TestRenderValueFormatting(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("{a}|{b}|{c}|{d}"))
	text := renderText(t, tpl, map[string]any{"a": 1500.0, "b": true, "c": nil, "d": 12.5})
	assert.Equal(t, "1500|true||12.5", text)
}

func TestRenderHeadersAndOtherParts(t *testing.T) {
	tpl := docxtest.Build(map[string]string{
		"word/document.xml":     `<w:document><w:body><w:p><w:r><w:t>{title}</w:t></w:r></w:p></w:body></w:document>`,
		"word/header1.xml":      `<w:hdr><w:p><w:r><w:t>{company}</w:t></w:r></w:p></w:hdr>`,
		"word/media/image1.png": "{not_a_placeholder}",
	})
	out, err := Render(tpl, map[string]any{"title": "Lease", "company": "Acme"}, WithCompression(flate.BestCompression))
	require.NoError(t, err)

	header, err := docxtest.Part(out, "word/header1.xml")
	require.NoError(t, err)
	assert.Contains(t, header, "Acme")

	media, err := docxtest.Part(out, "word/media/image1.png")
	require.NoError(t, err)
	assert.Equal(t, "{not_a_placeholder}", media)
}

func TestRenderCorruptTemplates(t *testing.T) {
	for name, tpl := range map[string][]byte{
		"empty":       nil,
		"plain text":  []byte("not a zip archive"),
		"no document": docxtest.Build(map[string]string{"word/styles.xml": "<w:styles/>"}),
		"truncated":   docxtest.Document(docxtest.P("x"))[:40],
	} {
		_, err := Render(tpl, nil)
		assert.True(t, errors.Is(err, ErrCorruptTemplate), name)
	}
}

func TestRenderMalformedSections(t *testing.T) {
	for _, body := range []string{"{#items}x", "x{/items}", "{#a}{/b}"} {
		_, err := Render(docxtest.Document(docxtest.P(body)), map[string]any{"items": []any{}, "a": true})
		assert.True(t, errors.Is(err, ErrMalformedTemplate), body)
	}
}

func TestPlaceholders(t *testing.T) {
	tpl := docxtest.Document(
		docxtest.P("{b}{a}"),
		docxtest.P("{#items}{name}{/items}"),
		docxtest.P("{party.name}{b}"),
	)
	names, err := Placeholders(tpl)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "items", "party"}, names)
}

func TestRenderSucceedsOnlyWhenAllPlaceholdersBound(t *testing.T) {
	tpl := docxtest.Document(docxtest.P("{employer_name} and {employee_name}"))
	names, err := Placeholders(tpl)
	require.NoError(t, err)

	full := map[string]any{}
	for _, n := range names {
		full[n] = "x"
	}
	_, err = Render(tpl, full)
	assert.NoError(t, err)

	for _, drop := range names {
		vars := map[string]any{}
		for k, v := range full {
			if k != drop {
				vars[k] = v
			}
		}
		_, err := Render(tpl, vars)
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, []string{drop}, rerr.Missing)
	}
}

func TestRenderPreservesSpacesAroundTags(t *testing.T) {
	out, err := Render(docxtest.Document(docxtest.P(" {a} ")), map[string]any{"a": "x"})
	require.NoError(t, err)
	xml, err := docxtest.Part(out, "word/document.xml")
	require.NoError(t, err)
	assert.True(t, bytes.Contains([]byte(xml), []byte(`<w:t xml:space="preserve"> x </w:t>`)))
}
