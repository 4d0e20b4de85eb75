package mcpserver

// WikiSyntax describes the note syntax the wiki understands. It is served
// as a tool result and as a resource so clients can write notes that link
// correctly.
const WikiSyntax = `# Sub-wiki Note Syntax

Notes are plain Markdown files ending in ` + "`" + `.md` + "`" + `. Every directory is a
sub-wiki with its own ` + "`" + `Home.md` + "`" + ` start page.

## Links

- ` + "`" + `[[Page]]` + "`" + ` links to ` + "`" + `Page.md` + "`" + ` in the current sub-wiki. Following a link
  to a note that does not exist yet opens an empty editor for it.
- ` + "`" + `[[Sub/Page]]` + "`" + ` links to ` + "`" + `Page.md` + "`" + ` inside the ` + "`" + `Sub` + "`" + ` sub-wiki, relative to
  the current one. Missing directories are created on the way.
- The label must not contain ` + "`" + `[ ] * _ ~ \ <` + "`" + `, backticks or line breaks.
  Anything else between the double brackets is used verbatim as the file name.
- Regular Markdown links (` + "`" + `[text](https://example.com)` + "`" + `) are opened
  outside the wiki.

## Formatting

GitHub-flavoured Markdown is supported: tables, strikethrough, task lists
and autolinks. Raw HTML is passed through.

## Example

` + "```" + `markdown
# Project X

See [[Meeting Notes]] and the [[Design/Overview]].

| owner | status |
|-------|--------|
| Alice | ~~draft~~ done |
` + "```" + `
`
