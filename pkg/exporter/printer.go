package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/manifest"
	"yaffscarve/pkg/types"
)

// PrintObject 打印找到的对象头
//
//	File found at offset: 0x80 "foo.txt"
func PrintObject(w io.Writer, hdr *core.ObjectHeader) {
	fmt.Fprintf(w, "%s found at offset: %s %q\n", label(hdr.Type), hdr.Offset, hdr.DisplayName())
}

func label(t core.ObjectType) string {
	switch t {
	case core.TypeFile:
		return "File"
	case core.TypeSymlink:
		return "Symlink"
	case core.TypeDirectory:
		return "Directory"
	case core.TypeHardLink:
		return "Hard link"
	case core.TypeSpecial:
		return "Special filesystem object"
	default:
		return "Yaffs Unknown object"
	}
}

// PrintExtracted 打印提取结果
func PrintExtracted(w io.Writer, res *Result, algo core.DigestAlgorithm) {
	if res.Excluded {
		fmt.Fprintf(w, "  excluded %s (%s at %s)\n", res.Name, FormatSize(res.Size), res.ContentOffset)
		return
	}
	fmt.Fprintf(w, "  extracted %s (%s at %s) %s:%s\n",
		res.Name, FormatSize(res.Size), res.ContentOffset, algo, res.Digest.Short())
}

func PrintExtractFailed(w io.Writer, hdr *core.ObjectHeader, err error) {
	fmt.Fprintf(w, "  failed to extract %q: %v\n", hdr.DisplayName(), err)
}

// PrintRejected 打印被丢弃的候选块
func PrintRejected(w io.Writer, off types.Offset, err error) {
	fmt.Fprintf(w, "Ignoring chunk at offset %s: %v\n", off, err)
}

// PrintManifest 以表格形式打印 manifest
func PrintManifest(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintf(w, "Source:    %s (%s)\n", m.Source, FormatSize(m.SourceSize))
	fmt.Fprintf(w, "Created:   %s\n", time.Unix(m.CreatedAt, 0).Format(time.RFC3339))
	fmt.Fprintf(w, "Digest:    %s\n", m.Algorithm)
	fmt.Fprintf(w, "Objects:   %d\n\n", len(m.Entries))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "OFFSET\tTYPE\tPARENT\tSTATUS\tSIZE\tDIGEST\tNAME\n")
	for _, e := range m.Entries {
		size, digest := "-", "-"
		if e.Size > 0 {
			size = FormatSize(e.Size)
		}
		if !e.Digest.IsZero() {
			digest = e.Digest.Short()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.Offset, e.Type, e.ParentID, e.Status, size, digest, e.Name)
	}
	tw.Flush()
}

// FormatSize 把字节数格式化成 B/KB/MB
func FormatSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
