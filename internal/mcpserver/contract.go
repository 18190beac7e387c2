package mcpserver

// AnnotationContract describes how assistant edits are marked inside a
// session note, for LLM clients that read or append to notes.
const AnnotationContract = `# Glean Annotation Format

Session notes are plain Markdown. Text the assistant added or changed is
wrapped in an annotation block so readers can tell it apart from their own
writing.

## Block syntax

` + "```" + `markdown
:::ai
New or changed text.
:::
` + "```" + `

## Rules

1. The opening line is exactly ` + "`:::ai`" + ` and the closing line is exactly ` + "`:::`" + `.
   The markers sit on their own lines.
2. Blocks do not nest. The first ` + "`:::`" + ` after an opener closes it.
3. A block may hold any inline Markdown: ` + "`**bold**`" + `, ` + "`*italic*`" + `,
   ` + "`` `code` ``" + ` and ` + "`[links](https://example.com)`" + `.
4. An unclosed opener is rendered as ordinary text.
5. Annotations are temporary. A few seconds after the last assistant edit
   the markers are stripped and the text becomes part of the note.
   A manual edit made in that window is kept as written.

## Appending

The ` + "`append_note`" + ` tool adds text to the end of the note, separated by a
blank line. Wrap the text in an annotation block to flag it for review.

## Example

` + "```" + `markdown
# Lisbon trip

Hotel A is near the river.

:::ai
**Hotel B** is cheaper but has no breakfast.
:::
` + "```" + `
`
