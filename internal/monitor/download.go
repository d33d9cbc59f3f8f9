package monitor

import (
	"context"
	"strings"

	"unvocal/web/components"
)

func renderDownloadLink(href, filename string) (string, error) {
	var sb strings.Builder
	if err := components.DownloadLink(href, filename).Render(context.Background(), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
