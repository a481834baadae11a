package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when writing notes into the vault.
const NoteFormatContract = `# Othala Note Format Contract

Every Markdown note stored in the vault SHOULD follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – falls back to the filename stem
tags:                               # OPTIONAL – YAML list or comma string
  - tag-one
  - project/alpha
created: 2025-01-15                 # OPTIONAL – any extra keys are kept as-is
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
Use [[target|alias]] for display text that differs from the target.
Use [[target#heading]] to point at a section; it still resolves to target.
` + "```" + `

## Rules

1. **Frontmatter is optional** but, when present, the ` + "`---`" + ` fences must be
   the very first thing in the file (no leading blank lines). Malformed YAML
   is tolerated: the block is stripped and the note keeps working.
2. **Identity is the slug**: the lowercased filename stem. ` + "`Weekly Review.md`" + `
   anywhere in the vault is the note ` + "`weekly-review`" + `. Keep stems unique.
3. **Tags** come from the frontmatter ` + "`tags`" + ` key and from inline ` + "`#tags`" + `
   in the body. Hierarchical tags use slashes: ` + "`#project/alpha`" + `. Tags inside
   code spans, URLs, and Markdown headings are not counted.
4. **Wikilinks** use double brackets: ` + "`[[other-note]]`" + `. The target is matched
   by slug, so ` + "`[[docs/other-note.md]]`" + ` and ` + "`[[other-note]]`" + ` are the same
   link. Links to notes that do not exist yet are fine; they show up as
   missing nodes in the graph.
5. **File paths** end with ` + "`.md`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.

## TK todo markers

TK marks content "to come". The scanner recognizes three forms, first
match wins, one item per line:

` + "```" + `markdown
- [ ] TK: write the summary     # markdown task item
TK: find a better citation      # standalone line
The numbers here are TK.        # bare word, anywhere on the line
` + "```" + `

Markers inside fenced code blocks and HTML comments are ignored. Quick
captures land in ` + "`todos.md`" + ` as task items:

` + "```" + `markdown
- [ ] TK: buy stamps (from [[errands]]) — 2025-01-20
` + "```" + `

Resolving a todo flips its ` + "`[ ]`" + ` to ` + "`[x]`" + ` in place.

## Skills

Skill descriptors live in the ` + "`skills/`" + ` directory and declare how the
shorthand command resolves free text:

` + "```" + `markdown
---
skill: weekly-review
name: Weekly Review
description: Walk the inbox and plan the week.
triggers: [review, weekly]
---

Step-by-step instructions in the body.
` + "```" + `
`
