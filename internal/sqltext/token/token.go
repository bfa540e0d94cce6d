package token

// Type identifies the lexical class of a token.
type Type string

// Position points to a location in the source SQL (1-based indices).
type Position struct {
	Line   int
	Column int
}

// Token holds the type, literal representation, and source location.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// Token types for the supported SELECT subset.
const (
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"

	IDENT  Type = "IDENT"
	NUMBER Type = "NUMBER"
	STRING Type = "STRING"

	COMMA     Type = ","
	SEMICOLON Type = ";"
	LPAREN    Type = "("
	RPAREN    Type = ")"
	DOT       Type = "."
	STAR      Type = "*"
	PLUS      Type = "+"
	MINUS     Type = "-"
	SLASH     Type = "/"
	PERCENT   Type = "%"
	EQ        Type = "="
	NEQ       Type = "NEQ"
	LT        Type = "<"
	LTE       Type = "<="
	GT        Type = ">"
	GTE       Type = ">="

	// Keywords
	SELECT    Type = "SELECT"
	FROM      Type = "FROM"
	WHERE     Type = "WHERE"
	GROUP     Type = "GROUP"
	BY        Type = "BY"
	HAVING    Type = "HAVING"
	ORDER     Type = "ORDER"
	LIMIT     Type = "LIMIT"
	OFFSET    Type = "OFFSET"
	AS        Type = "AS"
	DISTINCT  Type = "DISTINCT"
	WITH      Type = "WITH"
	OVER      Type = "OVER"
	PARTITION Type = "PARTITION"
	CAST      Type = "CAST"
	CASE      Type = "CASE"
	WHEN      Type = "WHEN"
	THEN      Type = "THEN"
	ELSE      Type = "ELSE"
	END       Type = "END"

	JOIN  Type = "JOIN"
	INNER Type = "INNER"
	LEFT  Type = "LEFT"
	RIGHT Type = "RIGHT"
	FULL  Type = "FULL"
	OUTER Type = "OUTER"
	CROSS Type = "CROSS"
	ON    Type = "ON"

	AND     Type = "AND"
	OR      Type = "OR"
	NOT     Type = "NOT"
	NULL    Type = "NULL"
	TRUE    Type = "TRUE"
	FALSE   Type = "FALSE"
	IN      Type = "IN"
	EXISTS  Type = "EXISTS"
	BETWEEN Type = "BETWEEN"
	LIKE    Type = "LIKE"
	IS      Type = "IS"
	DESC    Type = "DESC"
	ASC     Type = "ASC"

	ALL  Type = "ALL"
	ANY  Type = "ANY"
	SOME Type = "SOME"
)

var keywords = map[string]Type{
	"SELECT":    SELECT,
	"FROM":      FROM,
	"WHERE":     WHERE,
	"GROUP":     GROUP,
	"BY":        BY,
	"HAVING":    HAVING,
	"ORDER":     ORDER,
	"LIMIT":     LIMIT,
	"OFFSET":    OFFSET,
	"AS":        AS,
	"DISTINCT":  DISTINCT,
	"WITH":      WITH,
	"OVER":      OVER,
	"PARTITION": PARTITION,
	"CAST":      CAST,
	"CASE":      CASE,
	"WHEN":      WHEN,
	"THEN":      THEN,
	"ELSE":      ELSE,
	"END":       END,
	"JOIN":      JOIN,
	"INNER":     INNER,
	"LEFT":      LEFT,
	"RIGHT":     RIGHT,
	"FULL":      FULL,
	"OUTER":     OUTER,
	"CROSS":     CROSS,
	"ON":        ON,
	"AND":       AND,
	"OR":        OR,
	"NOT":       NOT,
	"NULL":      NULL,
	"TRUE":      TRUE,
	"FALSE":     FALSE,
	"IN":        IN,
	"EXISTS":    EXISTS,
	"BETWEEN":   BETWEEN,
	"LIKE":      LIKE,
	"IS":        IS,
	"DESC":      DESC,
	"ASC":       ASC,
	"ALL":       ALL,
	"ANY":       ANY,
	"SOME":      SOME,
}

// Lookup returns the keyword token if the identifier matches a reserved word.
func Lookup(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
