package boundary

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// archiveExts are the archive members worth extracting: shapefile parts and
// GeoJSON. Everything else (licenses, KML, GeoPackage) is skipped.
var archiveExts = map[string]bool{
	".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true,
	".geojson": true, ".json": true,
}

// Fetch downloads a boundary file into destDir and returns the local path of
// a loadable catalog. ZIP archives (GADM ships shapefiles zipped) are
// extracted flat; see pickCatalog for which layer is returned.
func Fetch(ctx context.Context, httpClient *http.Client, url, destDir string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	log := zap.L().With(zap.String("component", "boundary.fetch"))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "boundary: create dest dir")
	}

	name := path.Base(strings.SplitN(url, "?", 2)[0])
	if name == "" || name == "/" || name == "." {
		name = "boundaries.geojson"
	}
	dest := filepath.Join(destDir, name)

	log.Info("downloading boundary file", zap.String("url", url))
	if err := saveResponse(ctx, httpClient, url, dest); err != nil {
		return "", eris.Wrap(err, "boundary: download")
	}

	if !strings.EqualFold(filepath.Ext(dest), ".zip") {
		return dest, nil
	}

	extractDir := strings.TrimSuffix(dest, filepath.Ext(dest))
	files, err := extractBoundaryFiles(dest, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "boundary: extract archive")
	}

	p, err := pickCatalog(files)
	if err != nil {
		return "", eris.Wrapf(err, "boundary: %s", url)
	}
	log.Info("boundary file ready", zap.String("path", p), zap.Int("extracted", len(files)))
	return p, nil
}

// saveResponse streams a successful GET into dest. The body lands in a
// sibling temp file first so a failed download never leaves a truncated
// catalog under the final name.
func saveResponse(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, resp.Body); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "rename download")
	}
	return nil
}

// writeAndClose copies r into f and reports the close error, which is where
// a full disk usually surfaces.
func writeAndClose(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "write %s", f.Name())
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", f.Name())
	}
	return nil
}

// extractBoundaryFiles unpacks the shapefile parts and GeoJSON members of a
// ZIP into destDir, flattening directories. Two members that flatten to the
// same name (compared case-insensitively) are an error rather than a silent
// overwrite. It returns the extracted paths sorted by name.
func extractBoundaryFiles(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create extract dir")
	}

	seen := make(map[string]string)
	var out []string
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		base := path.Base(zf.Name)
		if !archiveExts[strings.ToLower(filepath.Ext(base))] {
			zap.L().Debug("boundary: skipping archive member", zap.String("member", zf.Name))
			continue
		}

		key := strings.ToLower(base)
		if prev, dup := seen[key]; dup {
			return nil, eris.Errorf("members %s and %s both extract to %s", prev, zf.Name, base)
		}
		seen[key] = zf.Name

		dest := filepath.Join(destDir, base)
		if err := extractMember(zf, dest); err != nil {
			return nil, err
		}
		out = append(out, dest)
	}

	sort.Strings(out)
	return out, nil
}

func extractMember(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip member %s", zf.Name)
	}
	defer rc.Close() //nolint:errcheck

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "create %s", dest)
	}
	return writeAndClose(f, rc)
}

// pickCatalog chooses the catalog among extracted files. Shapefiles win over
// GeoJSON. Among several layers the last by name is taken, which for GADM
// naming (gadm41_PAK_0 .. _3) is the finest level, the one carrying both
// NAME_2 and NAME_3. A shapefile without its .dbf has no names and is
// rejected.
func pickCatalog(files []string) (string, error) {
	have := make(map[string]bool, len(files))
	for _, f := range files {
		have[strings.ToLower(f)] = true
	}

	for _, exts := range [][]string{{".shp"}, {".geojson", ".json"}} {
		var candidates []string
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f))
			for _, want := range exts {
				if ext == want {
					candidates = append(candidates, f)
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}

		chosen := candidates[len(candidates)-1]
		if exts[0] == ".shp" {
			dbf := strings.ToLower(strings.TrimSuffix(chosen, filepath.Ext(chosen)) + ".dbf")
			if !have[dbf] {
				return "", eris.Errorf("shapefile %s has no .dbf attribute file", filepath.Base(chosen))
			}
		}
		return chosen, nil
	}
	return "", eris.New("no .shp or .geojson file in archive")
}
