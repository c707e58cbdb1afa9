/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"strings"
	"sync"
)

const LibName = "cognitoauth"

const libPath = "github.com/prostor/" + LibName

var libVersion string
var libVersionOnce sync.Once

func initLibVersion() {
	buildInfo, _ := debug.ReadBuildInfo()
	if libVersion = extractLibVersion(buildInfo, libPath); libVersion == "" {
		libVersion = "v0.0.0"
	}
}

// extractLibVersion looks for the module (or any of its major version suffixes) among the build dependencies.
func extractLibVersion(buildInfo *buildinfo.BuildInfo, modulePath string) string {
	if buildInfo == nil {
		return ""
	}
	for _, dep := range buildInfo.Deps {
		if dep.Path == modulePath || strings.HasPrefix(dep.Path, modulePath+"/v") {
			return dep.Version
		}
	}
	return ""
}

func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}
