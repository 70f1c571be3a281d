package featprobe

const (
	// SphinxName is the name of the Sphinx feature and the module it imports.
	SphinxName = "sphinx"
	// SphinxSpkg is the package that provides Sphinx.
	SphinxSpkg = "sphinx"
)

// Sphinx returns the feature describing the presence of the Sphinx
// documentation generator. Builds configured without documentation
// support leave it uninstalled.
func Sphinx() *PythonModule {
	return &PythonModule{
		name: SphinxName,
		opts: options{
			spkg:        SphinxSpkg,
			url:         "https://www.sphinx-doc.org",
			description: "Sphinx documentation generator",
		},
	}
}

// ListFeatures returns the features defined by this package.
func ListFeatures() []Feature {
	return []Feature{Sphinx()}
}
