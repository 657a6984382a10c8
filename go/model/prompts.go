package model

import (
	"fmt"
	"strings"
)

// Prompt template names of the registry.
const (
	PromptOCR            = "ocr"
	PromptCorrection     = "error_correction"
	PromptNoteSummary    = "note_summary"
	PromptSingleSummary  = "single_summary"
	PromptPerNoteSummary = "per_note_summary"
	PromptComprehensive  = "comprehensive_summary"
	PromptTagGeneration  = "tag_generation"
)

// defaultPrompts seed a PromptRegistry. Substitution is literal
// {placeholder} replacement with no escaping; callers sanitize inputs.
var defaultPrompts = map[string]string{
	PromptOCR: `请识别图片中的所有文字内容，包括数学公式、表格等。保持原有的格式和结构，对于数学公式请使用LaTeX格式表示。`,

	PromptCorrection: `请对以下文本进行纠错校正，修正可能的识别错误，但保持原有的格式和结构：

原始文本：
{content}

请返回纠错后的文本，要求：
1. 修正明显的识别错误
2. 保持原有的段落结构和格式
3. 对于数学公式，确保LaTeX语法正确
4. 不要添加额外的内容，只进行纠错`,

	PromptNoteSummary: `请对以下文本内容进行笔记总结，生成结构化的学习笔记：

原始内容：
{content}

请严格按照以下JSON格式返回结果，不要添加任何其他文字：
{"title": "笔记标题", "topic": "所属主题", "content_markdown": "Markdown格式的总结内容", "keywords": ["关键词1", "关键词2"]}

要求：
- 保持数学公式的LaTeX格式
- 使用清晰的Markdown结构
- 突出重点内容
- 提取5-10个关键词`,

	PromptSingleSummary: `请对以下笔记内容进行知识点总结：

{content}

请严格按照以下JSON格式返回结果，不要添加任何其他文字：
{"title": "笔记标题", "topic": "所属主题", "content_markdown": "Markdown格式的总结内容"}`,

	PromptPerNoteSummary: `请对以下单份笔记进行简洁的知识点总结，保留核心概念与结论：

{content}

请严格按照以下JSON格式返回结果，不要添加任何其他文字：
{"title": "笔记标题", "topic": "所属主题", "content_markdown": "Markdown格式的总结内容"}`,

	PromptComprehensive: `请对以下多份笔记总结进行综合整理，合并重复知识点，形成一份完整的综合总结：

{content}

请严格按照以下JSON格式返回结果，不要添加任何其他文字：
{"title": "综合总结标题", "topic": "所属主题", "content_markdown": "Markdown格式的综合总结内容"}`,

	PromptTagGeneration: `基于以下内容，为其生成最相关的标签。

内容摘要：{summary_content}
知识库记录：{knowledge_record}

现有标签列表：{existing_tags}

请按以下规则生成标签：
1. 优先从现有标签中选择最匹配的标签
2. 如果现有标签不够准确，可以生成新的标签
3. 标签应该简洁、准确、有代表性
4. 避免过于宽泛的标签（如"学习"、"知识"等）

请严格按照以下JSON格式返回结果，不要添加任何其他文字：
{"existing": ["现有标签1"], "new": [{"name": "新标签1", "confidence": 0.9}]}`,
}

// PromptRegistry maps template names to prompt strings.
type PromptRegistry struct {
	templates map[string]string
}

// NewPromptRegistry returns a registry seeded with the default prompts.
func NewPromptRegistry() *PromptRegistry {
	var m = make(map[string]string, len(defaultPrompts))
	for k, v := range defaultPrompts {
		m[k] = v
	}
	return &PromptRegistry{templates: m}
}

// Set registers or replaces a named template.
func (r *PromptRegistry) Set(name, template string) { r.templates[name] = template }

// Render substitutes {placeholder} occurrences of vars into the named
// template. Substitution is literal, with no escaping.
func (r *PromptRegistry) Render(name string, vars map[string]string) (string, error) {
	var tpl, ok = r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	for k, v := range vars {
		tpl = strings.ReplaceAll(tpl, "{"+k+"}", v)
	}
	return tpl, nil
}
