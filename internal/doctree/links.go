package doctree

// RefType is the kind of object an in-text cross-reference points at.
type RefType string

const (
	RefTable     RefType = "table"
	RefFigure    RefType = "figure"
	RefEquation  RefType = "equation"
	RefSection   RefType = "section"
	RefAlgorithm RefType = "algorithm"
	RefCitation  RefType = "citation"
)

// Reference is a resolved in-text cross-reference. SourceID never equals TargetID.
type Reference struct {
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	Type        RefType `json:"type"`
	Label       string  `json:"label"`
	MatchedText string  `json:"matched_text"`
}

// TitleLink associates a caption with the content it describes.
type TitleLink struct {
	CaptionID       string  `json:"caption_id"`
	TargetID        string  `json:"target_id"`
	PageDistance    int     `json:"page_distance"`
	SpatialDistance float64 `json:"spatial_distance"`
}

// Chunk is a bounded, reading-order group of fragments ready for embedding.
type Chunk struct {
	Index    int           `json:"index"`
	Text     string        `json:"text"`
	Size     int           `json:"size"`
	Tokens   int           `json:"tokens"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata is the per-chunk metadata consumed by the embedding layer.
type ChunkMetadata struct {
	FileID      string          `json:"file_id,omitempty"`
	PageNumbers []int           `json:"page_numbers"`
	ContentIDs  []string        `json:"content_ids"`
	SectionPath []string        `json:"section_path,omitempty"`
	References  ChunkReferences `json:"references"`
}

// ChunkReferences lists cross-reference and overlap ids of a chunk.
type ChunkReferences struct {
	ReferencesTo []string `json:"references_to"`
	ReferencedBy []string `json:"referenced_by"`
	PrevChunkIDs []string `json:"prev_chunk_ids"`
	NextChunkIDs []string `json:"next_chunk_ids"`
}
