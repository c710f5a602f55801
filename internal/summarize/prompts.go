package summarize

import (
	"fmt"
	"strings"
)

const (
	fileSystemPrompt = "You are an expert on generating semantic descriptions for code."

	packageSystemPrompt = "You are an expert at generating higher order package summaries for detailed package documentation"
)

func fileSummaryPrompt(language, code string) string {
	lang := strings.ToLower(language)
	return fmt.Sprintf(`Understand the following %s file and generate a semantic description for it in markdown format.

`+"```%s\n%s\n```"+`

Generated document should follow this structure:
`+"```"+`
# Semantic Summary
A brief semantic summary of the entire file. This should not exceed 100 tokens.

# Code Structures
List of classes, functions, and other structures in the file with a brief semantic summary for each. Individual summaries should not exceed 50 tokens. E.g.,
- Class `+"`ClassName`"+`: Description of the class.
- Function `+"`function_name`"+`: Description of the function.
- Enum `+"`EnumName`"+`: Description of the enum.
- ...
`+"```",
		language, lang, code)
}

func packageSummaryPrompt(language, name, documentation string) string {
	return fmt.Sprintf(`Understand the following hierarchical documentation for %s package %s, with semantic description of sub-packages, files, classes, and functions contained.

`+"```markdown\n%s\n```"+`

Now generate an abstractive package summary in markdown format with the following structure:
`+"```"+`
# <Package Name>

## Semantic Summary
A very crisp description of the full package semantics. This should not exceed 150 tokens.

## Contained code structure names
Just a comma separated listing of contained sub-package, file, class, function, enum, or structure names. E.g.,
`+"`package1`, `sub_package`, `file_name.py`, `ClassName`, `function_name`, `EnumName`, `__init__.py` ..."+`
`+"```"+`

Note: Whole package summary should not exceed 512 tokens. For large packages skip names of contained code structures that are relatively less importance.`,
		strings.ToLower(language), name, documentation)
}
