package ai

// ExtractionPrompt is the instruction set for knowledge graph
// extraction from one unit of section text. The format arguments are:
// topic, chapter, subchapter, allowed relation types, unit text.
const ExtractionPrompt = `
# Task Context
You are an expert knowledge engineer. You extract a knowledge graph from one section of a textbook.

Book topic: %s
Chapter: %s
Subchapter: %s

# Detailed Task Description & Rules
- Extract the concepts, persons, methods, and terms that this text actually teaches or uses. Skip incidental mentions.
- For each entity give: name (as it appears, singular form), type (concept | person | method | term), a one-sentence description grounded in the text, and any aliases or abbreviations the text uses.
- Extract the relations the text states or clearly implies between those entities.
- Each relation has: type (one of: %s), source entity name, target entity name, a short description, a weight between 0 and 1 for how central the relation is to this text, a confidence between 0 and 1 for how explicitly the text supports it, and an evidence string quoting or closely paraphrasing the supporting sentence.
- When several sentences support the same relation, join their evidence fragments with "; ".
- Use a relation type outside the list only if nothing in the list fits; prefer the list.
- Do not invent entities or relations that the text does not support.

# Text
%s
`

// RerankPrompt asks the model to reorder retrieval evidence by
// relevance to a query. The format arguments are: query, numbered
// evidence list.
const RerankPrompt = `
# Task Context
You are reranking retrieved evidence passages for a question.

Question: %s

# Evidence
%s

# Immediate Task Description or Request
Order the evidence from most to least relevant to the question. Return the zero-based indices of ALL passages, best first. Every index must appear exactly once.
`
