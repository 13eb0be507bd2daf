package mcpserver

// EntryFormatContract describes the Markdown entry format that LLM consumers
// should follow when creating entries.
const EntryFormatContract = `# Entry Format Contract

Every Markdown file under the database root that matches the configured globs
(default ` + "`" + `**/*.md` + "`" + `) is one entry.

## Structure

` + "```" + `markdown
---
query:                 # OPTIONAL – when the entry applies; default: never
  component: button
  props.size:
    $in: [sm, md]
title: Button sizes    # OPTIONAL – any other keys are kept as fields
---

Body text in standard Markdown. Leading and trailing whitespace is trimmed.
` + "```" + `

## Ids

- The id is the path relative to the root without the ` + "`" + `.md` + "`" + ` extension,
  e.g. ` + "`" + `buttons/variants.md` + "`" + ` is ` + "`" + `buttons/variants` + "`" + `.
- A numeric ordering prefix is dropped from every segment:
  ` + "`" + `1.guide/0.setup.md` + "`" + ` is ` + "`" + `guide/setup` + "`" + `.
- A last dot-suffix before ` + "`" + `.md` + "`" + ` is the entry type:
  ` + "`" + `buttons/variants.ui.md` + "`" + ` has id ` + "`" + `buttons/variants` + "`" + ` and type ` + "`" + `ui` + "`" + `.
- A file named like its folder stands for the folder:
  ` + "`" + `buttons/buttons.md` + "`" + ` has id ` + "`" + `buttons` + "`" + `.
- Ids must be unique; two files resolving to the same id fail the load.

## Queries

- ` + "`" + `true` + "`" + ` always matches; ` + "`" + `false` + "`" + ` (the default) never does.
- A document matches when every field condition holds. Fields use dotted
  paths (` + "`" + `props.size` + "`" + `, ` + "`" + `items.0.kind` + "`" + `).
- Operators: ` + "`" + `$eq $ne $gt $gte $lt $lte $in $nin $exists $regex $options
  $size $all $elemMatch $not` + "`" + `; logical ` + "`" + `$and $or $nor` + "`" + `.

## Hierarchy

An entry is only considered when every ancestor entry (an entry whose id is a
prefix of its id, e.g. ` + "`" + `buttons` + "`" + ` for ` + "`" + `buttons/variants` + "`" + `) also matched the
same input. Ancestors without a file never block.

## Rules

1. **The ` + "`" + `---` + "`" + ` fences must be the first thing in the file**, each alone on its line.
2. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
3. **Encoding** is UTF-8 with a trailing newline.
4. A file with invalid frontmatter fails the whole reload; fix it before refreshing.
`
