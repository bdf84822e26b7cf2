// Package insights provides a scope-based client for the iTwin Insights API.
//
// Usage:
//
//	client, err := insights.New("", insights.BearerToken(token), insights.WithTimeout(30*time.Second))
//	reports, err := client.Reports().List(ctx, projectID)
//	groups, err := client.Groups(iModelID, mappingID).List(ctx)
//	run, err := client.Extraction(iModelID).Run(ctx)
//	status, err := client.Extraction(iModelID).Wait(ctx, run.ID, 10*time.Minute)
//
// Every resource client is an instance of the generic Resource, which follows
// _links.next pagination on list calls and reads single entities out of the
// response envelope with ParseSingleEntityBody.
package insights
