package router

// Header is a name/value pair injected into requests or responses
type Header struct {
	Name  string
	Value string
}

// Directory mounts a filesystem root under a route prefix. With IndexFile
// set, requests for directories serve that file; with ShowListing set they
// get a file listing; otherwise only plain files are served.
type Directory struct {
	Route       string
	Root        string
	IndexFile   string
	ShowListing bool
}
