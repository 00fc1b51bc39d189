package ai

import (
	"github.com/cloudwego/eino/schema"
)

// Tool names the model may invoke. The turn interpreter rejects anything
// outside this set.
const (
	ToolExtractInformation = "extract_information"
	ToolGenerateDocument   = "generate_document"
	ToolApplyEdits         = "apply_edits"
)

// ToolInfos declares the document tool schema bound to every model call.
func ToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolExtractInformation,
			Desc: "Extract structured information from the conversation for legal document generation. " +
				"Use this when you need to gather specific details like names, dates, positions, or other document parameters.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"document_type": {
					Desc:     "Type of legal document (e.g., 'director_appointment', 'nda', 'employment_agreement')",
					Type:     schema.String,
					Required: true,
				},
				"extracted_data": {
					Desc:     "Key-value pairs of extracted information",
					Type:     schema.Object,
					Required: true,
				},
				"missing_fields": {
					Desc:     "List of required fields that are still missing",
					Type:     schema.Array,
					ElemInfo: &schema.ParameterInfo{Type: schema.String},
				},
			}),
		},
		{
			Name: ToolGenerateDocument,
			Desc: "Generate a complete legal document based on extracted information. " +
				"Use this only when you have all required information to create a comprehensive document.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"document_type": {
					Desc:     "Type of legal document to generate",
					Type:     schema.String,
					Required: true,
				},
				"document_data": {
					Desc:     "All data needed to generate the document",
					Type:     schema.Object,
					Required: true,
				},
			}),
		},
		{
			Name: ToolApplyEdits,
			Desc: "Apply specific edits to an existing document based on user requests. " +
				"Use this when the user wants to modify, update, or change part of an already generated document.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"edit_type": {
					Desc:     "Type of edit: 'update_field', 'replace_section', or 'add_clause'",
					Type:     schema.String,
					Required: true,
				},
				"field_name": {
					Desc:     "Name of the field or section to edit",
					Type:     schema.String,
					Required: true,
				},
				"new_value": {
					Desc:     "New value or content to apply",
					Type:     schema.String,
					Required: true,
				},
				"reason": {
					Desc: "Brief explanation of the edit",
					Type: schema.String,
				},
			}),
		},
	}
}
