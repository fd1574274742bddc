package media

// Media is a parsed upload: either a single MediaFile or an Archive of
// files extracted from a zip.
type Media interface {
	MediaName() string
}

// MediaFile is one uploaded or extracted file with its sniffed mimetype.
type MediaFile struct {
	Name     string
	MimeType string
	Data     []byte
}

func (f *MediaFile) MediaName() string {
	return f.Name
}

// Archive is the raw uploaded zip plus the flattened list of its
// non-directory entries. Directory structure inside the zip is
// discarded; downstream classification works on base filenames only.
type Archive struct {
	MediaFile
	Files []*MediaFile
}

func (a *Archive) MediaName() string {
	return a.Name
}

// GetFileByName returns the entry whose base filename matches name
// exactly, or nil.
func (a *Archive) GetFileByName(name string) *MediaFile {
	for _, f := range a.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}
