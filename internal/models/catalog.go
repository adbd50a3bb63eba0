package models

// Pose is a single named pose as it appears in a catalog.
// Etymology and Anatomical are optional and default to "".
type Pose struct {
	Sanskrit    string `json:"sanskrit" yaml:"sanskrit" mapstructure:"sanskrit"`
	Translation string `json:"translation" yaml:"translation" mapstructure:"translation"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
	Etymology   string `json:"etymology,omitempty" yaml:"etymology,omitempty" mapstructure:"etymology"`
	Anatomical  string `json:"anatomical,omitempty" yaml:"anatomical,omitempty" mapstructure:"anatomical"`
}

// Section groups poses under a heading. Poses keep document order.
type Section struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Poses []Pose `json:"poses,omitempty" yaml:"poses,omitempty" mapstructure:"poses"`
}

// PoseCatalog is the loaded catalog document.
type PoseCatalog struct {
	Sections []Section `json:"sections" yaml:"sections" mapstructure:"sections"`
}

// PoseCount returns the number of poses across all sections.
func (c *PoseCatalog) PoseCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Poses)
	}
	return n
}

// Job is one unit of generation work derived from a Pose.
// Index is 1-based and global across sections.
type Job struct {
	Index   int
	Section string
	Pose    Pose
}
