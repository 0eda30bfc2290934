// Package recipestore is a schema-governed document store with a
// GridFS-style binary bucket, built for a recipe service.
//
// At startup the schema directory is loaded with LoadSchemas and reconciled
// against the database by a Provisioner: every entity gets a collection
// carrying its $jsonSchema validator, "recipe" gets one collection per
// configured language ("recipe-en", "recipe-sv", ...) and "file" governs the
// bucket's files collection. The Service then serves uploads, downloads and
// document operations on top of a Store and a Bucket.
//
// Quick start with the in-memory backend:
//
//	db := memory.New()
//	schemas, err := recipestore.LoadSchemas("schemas/database")
//	if err != nil {
//		log.Fatal(err)
//	}
//	p := recipestore.NewProvisioner(db, "", []string{"en", "sv"}, nil)
//	if err := p.ProvisionAll(ctx, schemas); err != nil {
//		log.Fatal(err)
//	}
//
//	svc, err := recipestore.New(
//		recipestore.WithStore(db),
//		recipestore.WithBucket(db.Bucket("")),
//		recipestore.WithLanguages("en", "sv"),
//	)
//
//	_, err = svc.Upload(ctx, recipestore.UploadRequest{
//		LogicalID: "abc123",
//		Filename:  "pancakes.png",
//		Metadata:  `{"tag":"x"}`,
//		Reader:    file,
//	})
//
// Uploads are not atomic with respect to the duplicate check: two concurrent
// uploads of the same logical id can both succeed unless the files collection
// has a unique index on metadata.id.
package recipestore
