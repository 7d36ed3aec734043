//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
// #include <stdlib.h>
//
// NSInteger clipstash_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
//
// // clipstash_fileURLs returns the newline-joined paths of any file URLs on
// // the pasteboard, or NULL. Caller frees.
// char *clipstash_fileURLs() {
//     NSPasteboard *pb = [NSPasteboard generalPasteboard];
//     NSDictionary *opts = @{NSPasteboardURLReadingFileURLsOnlyKey: @YES};
//     NSArray<NSURL *> *urls = [pb readObjectsForClasses:@[[NSURL class]] options:opts];
//     if (urls == nil || urls.count == 0) {
//         return NULL;
//     }
//     NSMutableArray<NSString *> *paths = [NSMutableArray arrayWithCapacity:urls.count];
//     for (NSURL *u in urls) {
//         if (u.path != nil) [paths addObject:u.path];
//     }
//     if (paths.count == 0) {
//         return NULL;
//     }
//     return strdup([[paths componentsJoinedByString:@"\n"] UTF8String]);
// }
//
// // clipstash_writeFileURLs replaces the pasteboard contents with file URLs
// // for the newline-joined paths. Returns 1 on success.
// int clipstash_writeFileURLs(const char *joined) {
//     NSString *s = [NSString stringWithUTF8String:joined];
//     NSArray<NSString *> *paths = [s componentsSeparatedByString:@"\n"];
//     NSMutableArray<NSURL *> *urls = [NSMutableArray arrayWithCapacity:paths.count];
//     for (NSString *p in paths) {
//         if (p.length > 0) [urls addObject:[NSURL fileURLWithPath:p]];
//     }
//     NSPasteboard *pb = [NSPasteboard generalPasteboard];
//     [pb clearContents];
//     return [pb writeObjects:urls] ? 1 : 0;
// }
//
// // clipstash_frontmostApp writes the frontmost application's bundle id and
// // localized name. Caller frees both. Either may be NULL.
// void clipstash_frontmostApp(char **bundleID, char **name) {
//     NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
//     *bundleID = NULL;
//     *name = NULL;
//     if (app == nil) return;
//     if (app.bundleIdentifier != nil) *bundleID = strdup([app.bundleIdentifier UTF8String]);
//     if (app.localizedName != nil)   *name = strdup([app.localizedName UTF8String]);
// }
import "C"

import (
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	"golang.design/x/clipboard"

	"go.klb.dev/clipstash/internal/content"
)

type darwinBackend struct{}

// New returns the macOS clipboard backend. clipboard.Init is called here
// rather than in init() so that constructing nothing never logs spurious
// warnings on headless systems.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	return &darwinBackend{}
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) ChangeCount() (int64, error) {
	return int64(C.clipstash_changeCount()), nil
}

func (b *darwinBackend) Read() (*Snapshot, error) {
	snap := &Snapshot{}

	if joined := C.clipstash_fileURLs(); joined != nil {
		snap.Files = strings.Split(C.GoString(joined), "\n")
		C.free(unsafe.Pointer(joined))
	}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		snap.Text = string(text)
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		snap.ImagePNG = img
	}

	if len(snap.Files) == 0 && snap.Text == "" && len(snap.ImagePNG) == 0 {
		return nil, nil
	}
	return snap, nil
}

func (b *darwinBackend) Write(c content.Content) error {
	switch c.Kind {
	case content.KindText:
		clipboard.Write(clipboard.FmtText, []byte(c.Text))
	case content.KindImage:
		clipboard.Write(clipboard.FmtImage, c.Image)
	case content.KindFiles:
		joined := C.CString(strings.Join(c.Files, "\n"))
		defer C.free(unsafe.Pointer(joined))
		if C.clipstash_writeFileURLs(joined) == 0 {
			return fmt.Errorf("write file URLs to pasteboard failed")
		}
	default:
		return fmt.Errorf("unsupported content kind: %s", c.Kind)
	}
	return nil
}

func (b *darwinBackend) FrontmostApp() (AppInfo, error) {
	var cBundle, cName *C.char
	C.clipstash_frontmostApp(&cBundle, &cName)

	var info AppInfo
	if cBundle != nil {
		info.BundleID = C.GoString(cBundle)
		C.free(unsafe.Pointer(cBundle))
	}
	if cName != nil {
		info.Name = C.GoString(cName)
		C.free(unsafe.Pointer(cName))
	}
	return info, nil
}

func (b *darwinBackend) Close() {}
