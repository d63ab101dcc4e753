package pattern

// yamlPattern is the intermediate struct for parsing pattern files.
type yamlPattern struct {
	ID    *uint    `yaml:"id"`
	Text  string   `yaml:"text"`
	Flags []string `yaml:"flags,omitempty"`
}

// yamlPatternsFile represents the top-level structure of a pattern file.
type yamlPatternsFile struct {
	Patterns []yamlPattern `yaml:"patterns"`
}
